package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trafficlens/internal"
	"trafficlens/internal/config"
	"trafficlens/internal/store"
	"trafficlens/internal/users"
	"trafficlens/internal/websites"
)

// testDBCache caches test databases by root test name so subtests share one database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns every persisted model
func allModels() []any {
	return []any{
		&users.User{},
		&websites.Website{},
		&store.Session{},
		&store.WebsiteEvent{},
	}
}

// SetupTestDB creates a migrated in-memory database. Calls within the same
// root test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager over a fresh in-memory database
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()
	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tables []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tables)

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestWebsite creates a website owned by ownerID
func CreateTestWebsite(t *testing.T, db *gorm.DB, domain string, ownerID uint) websites.Website {
	t.Helper()
	website := websites.Website{Domain: domain, OwnerID: ownerID}
	require.NoError(t, websites.CreateWebsite(db, &website))
	return website
}

// CreateTestUser creates a user with the given role
func CreateTestUser(t *testing.T, db *gorm.DB, email string, role users.Role) *users.User {
	t.Helper()
	user, err := users.CreateUser(db, email, role)
	require.NoError(t, err)
	return user
}

// Visit describes one session and its pageviews for seeding
type Visit struct {
	Session  store.Session
	Referrer string // referrer domain of the first pageview
	Query    string // query string of the first pageview
	Paths    []string
	At       time.Time
}

// CreateVisit stores a session and one pageview per path, a minute apart.
// Later pageviews are internal navigation with the site as referrer.
func CreateVisit(t *testing.T, db *gorm.DB, websiteID uint, hostname string, v Visit) store.Session {
	t.Helper()

	session := v.Session
	session.WebsiteID = websiteID
	session.CreatedAt = v.At.UTC()
	require.NoError(t, db.Create(&session).Error)

	for i, path := range v.Paths {
		event := store.WebsiteEvent{
			WebsiteID: websiteID,
			SessionID: session.ID,
			EventType: store.EventTypePageview,
			URLPath:   path,
			Hostname:  hostname,
			CreatedAt: v.At.Add(time.Duration(i) * time.Minute).UTC(),
		}
		if i == 0 {
			event.ReferrerDomain = v.Referrer
			event.URLQuery = v.Query
		} else {
			event.ReferrerDomain = hostname
		}
		require.NoError(t, db.Create(&event).Error)
	}
	return session
}

// CreateCustomEvent stores a custom event with a JSON payload
func CreateCustomEvent(t *testing.T, db *gorm.DB, session store.Session, name, payload string, at time.Time) {
	t.Helper()
	event := store.WebsiteEvent{
		WebsiteID: session.WebsiteID,
		SessionID: session.ID,
		EventType: store.EventTypeCustom,
		EventName: name,
		URLPath:   "/",
		CreatedAt: at.UTC(),
	}
	if payload != "" {
		event.EventData = store.JSON(payload)
	}
	require.NoError(t, db.Create(&event).Error)
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = NewTestDBManager(db)

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
