package seeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"trafficlens/internal/store"
	"trafficlens/internal/users"
	"trafficlens/internal/websites"
)

// DefaultDomains are seeded when no domain is given
var DefaultDomains = []string{
	"example.com",
	"blog.example.com",
	"app.example.com",
	"mywebsite.com",
}

// Seeder fills the database with sessions, pageviews and custom events
// shaped like real traffic, so every metric type and chart has data.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	EventCount int

	rng *rand.Rand
	now func() time.Time
}

// NewSeeder creates a new seeder instance. A zero seed picks a random one.
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, eventCount int, seed uint64) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		EventCount: eventCount,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:        time.Now,
	}
}

// Run seeds the admin user, the default websites and their traffic
func (s *Seeder) Run(ctx context.Context) error {
	start := s.now()
	s.Logger.Info("Starting database seeding...", slog.Int("eventCount", s.EventCount))

	user, err := s.seedUser()
	if err != nil {
		return fmt.Errorf("failed to seed user: %w", err)
	}

	sites, err := s.seedWebsites(user.ID, DefaultDomains)
	if err != nil {
		return fmt.Errorf("failed to seed websites: %w", err)
	}

	perSite := s.EventCount / len(sites)
	for _, site := range sites {
		s.Logger.Info("Generating data for website", slog.String("domain", site.Domain))
		if err := s.generate(ctx, site, perSite); err != nil {
			return fmt.Errorf("failed to generate data for %s: %w", site.Domain, err)
		}
	}

	s.Logger.Info("Seeding completed successfully", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// SeedDomain seeds a specific existing domain with test data
func (s *Seeder) SeedDomain(ctx context.Context, domain string) error {
	db := s.DBManager.GetConnection()

	site, err := websites.GetWebsiteByDomain(db, domain)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("website with domain %s not found", domain)
		}
		return fmt.Errorf("failed to find website: %w", err)
	}

	s.Logger.Info("Seeding specific domain...", slog.String("domain", domain), slog.Int("eventCount", s.EventCount))
	return s.generate(ctx, site, s.EventCount)
}

// seedUser ensures the default admin user exists
func (s *Seeder) seedUser() (*users.User, error) {
	db := s.DBManager.GetConnection()
	user, err := users.FindByEmail(db, "admin@example.com")
	if err == nil {
		s.Logger.Info("Admin user already exists", slog.String("email", user.Email))
		return user, nil
	}
	if !errors.Is(err, users.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check for existing user: %w", err)
	}

	s.Logger.Info("Creating admin user")
	return users.CreateUser(db, "admin@example.com", users.RoleAdmin)
}

// seedWebsites creates the given websites unless they already exist
func (s *Seeder) seedWebsites(ownerID uint, domains []string) ([]*websites.Website, error) {
	db := s.DBManager.GetConnection()
	sites := make([]*websites.Website, 0, len(domains))

	for _, domain := range domains {
		if existing, err := websites.GetWebsiteByDomain(db, domain); err == nil {
			s.Logger.Info("Website already exists", slog.String("domain", existing.Domain))
			sites = append(sites, existing)
			continue
		}

		site := &websites.Website{Domain: domain, OwnerID: ownerID}
		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			return websites.CreateWebsite(tx, site)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create website %s: %w", domain, err)
		}

		s.Logger.Info("Website created successfully", slog.Uint64("id", uint64(site.ID)), slog.String("domain", site.Domain))
		sites = append(sites, site)
	}

	return sites, nil
}

// generate writes sessions until about target pageviews exist for site.
// Each session and its events are written in one transaction.
func (s *Seeder) generate(ctx context.Context, site *websites.Website, target int) error {
	db := s.DBManager.GetConnection()

	numSessions := target / avgPagesPerSession
	if numSessions < 10 {
		numSessions = 10
	}

	pageviews := 0
	for i := 0; i < numSessions; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		session, events := s.visit(site)
		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			if err := tx.Create(&session).Error; err != nil {
				return err
			}
			for j := range events {
				events[j].SessionID = session.ID
			}
			return tx.Create(&events).Error
		})
		if err != nil {
			return err
		}

		for _, e := range events {
			if e.EventType == store.EventTypePageview {
				pageviews++
			}
		}
	}

	s.Logger.Info("Generated journey-based events for website",
		slog.String("domain", site.Domain),
		slog.Int("sessions", numSessions),
		slog.Int("pageviews", pageviews))
	return nil
}

// visit builds one session and its events
func (s *Seeder) visit(site *websites.Website) (store.Session, []store.WebsiteEvent) {
	start := s.now().UTC().Add(-time.Duration(s.rng.IntN(30*24*60*60)) * time.Second)
	client := pick(s.rng, clients)
	place := pick(s.rng, places)

	session := store.Session{
		WebsiteID: site.ID,
		Browser:   client.browser,
		OS:        client.os,
		Device:    client.device,
		Screen:    client.screen,
		Language:  pick(s.rng, place.languages),
		Country:   place.country,
		Region:    place.region,
		City:      place.city,
		CreatedAt: start,
	}

	journey := pick(s.rng, journeys)
	referrer := pick(s.rng, referrers)
	query := s.landingQuery()

	events := make([]store.WebsiteEvent, 0, len(journey)+1)
	at := start
	for i, path := range journey {
		if i > 0 {
			at = at.Add(time.Duration(s.rng.IntN(110)+10) * time.Second)
		}
		event := store.WebsiteEvent{
			WebsiteID:      site.ID,
			EventType:      store.EventTypePageview,
			URLPath:        path,
			PageTitle:      titles[path],
			Hostname:       site.Domain,
			ReferrerDomain: site.Domain,
			CreatedAt:      at,
		}
		if i == 0 {
			event.ReferrerDomain = referrer.domain
			event.ReferrerPath = referrer.path
			event.URLQuery = query
		}
		events = append(events, event)
	}

	if s.rng.Float64() < 0.3 {
		goal := pick(s.rng, goals)
		payload, _ := json.Marshal(goal.data(s.rng))
		events = append(events, store.WebsiteEvent{
			WebsiteID: site.ID,
			EventType: store.EventTypeCustom,
			EventName: goal.name,
			EventData: store.JSON(payload),
			URLPath:   journey[len(journey)-1],
			Hostname:  site.Domain,
			CreatedAt: at.Add(30 * time.Second),
		})
	}

	return session, events
}

// landingQuery returns the query string of an entry page, sometimes with UTM tags
func (s *Seeder) landingQuery() string {
	if s.rng.IntN(10) < 7 {
		return ""
	}

	params := url.Values{}
	if s.rng.IntN(3) == 0 {
		params.Set("ref", fmt.Sprintf("value%d", s.rng.IntN(100)))
	}
	if s.rng.IntN(10) < 6 {
		params.Set("utm_source", pick(s.rng, []string{"google", "facebook", "newsletter", "twitter", "linkedin", "awin"}))
		params.Set("utm_medium", pick(s.rng, []string{"cpc", "social", "email", "organic", "referral", "affiliate", "sms", "display"}))
		params.Set("utm_campaign", pick(s.rng, []string{"spring_sale", "product_launch", "dev_outreach", "q4_promo", "shopping"}))
	}
	return params.Encode()
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

const avgPagesPerSession = 4

type client struct {
	browser, os, device, screen string
}

var clients = []client{
	{"chrome", "Windows 10", "desktop", "1920x1080"},
	{"chrome", "Mac OS", "laptop", "1440x900"},
	{"safari", "Mac OS", "laptop", "1512x982"},
	{"ios", "iOS", "mobile", "390x844"},
	{"chrome", "Android OS", "mobile", "412x915"},
	{"firefox", "Linux", "desktop", "2560x1440"},
	{"edge-chromium", "Windows 10", "desktop", "1366x768"},
	{"ios", "iOS", "tablet", "820x1180"},
}

type place struct {
	country, region, city string
	languages             []string
}

var places = []place{
	{"US", "US-CA", "San Francisco", []string{"en-US"}},
	{"US", "US-NY", "New York", []string{"en-US", "es-US"}},
	{"GB", "GB-ENG", "London", []string{"en-GB"}},
	{"DE", "DE-BE", "Berlin", []string{"de-DE", "de", "en-US"}},
	{"ES", "ES-MD", "Madrid", []string{"es-ES", "es"}},
	{"FR", "FR-IDF", "Paris", []string{"fr-FR", "fr"}},
	{"BR", "BR-SP", "São Paulo", []string{"pt-BR"}},
	{"JP", "JP-13", "Tokyo", []string{"ja-JP", "ja"}},
}

type source struct {
	domain, path string
}

var referrers = []source{
	{"", ""},
	{"", ""},
	{"google.com", "/"},
	{"bing.com", "/search"},
	{"duckduckgo.com", "/"},
	{"facebook.com", "/"},
	{"t.co", "/x1y2z3"},
	{"linkedin.com", "/feed"},
	{"github.com", "/trafficlens/trafficlens"},
	{"news.ycombinator.com", "/item"},
	{"youtube.com", "/watch"},
	{"outlook.live.com", "/mail"},
}

var journeys = [][]string{
	{"/", "/about", "/contact"},
	{"/", "/features", "/pricing", "/signup"},
	{"/", "/blog", "/blog/article-1", "/signup"},
	{"/pricing", "/features", "/signup"},
	{"/", "/products", "/products/widget-a", "/products/gadget-b", "/pricing"},
	{"/", "/docs", "/docs/getting-started", "/docs/api-reference"},
	{"/", "/blog", "/blog/article-1", "/blog/article-2"},
	{"/", "/signup"},
	{"/", "/features", "/pricing", "/docs", "/signup"},
	{"/blog/article-1", "/about", "/pricing", "/signup"},
}

var titles = map[string]string{
	"/":                     "Home",
	"/about":                "About us",
	"/contact":              "Contact",
	"/features":             "Features",
	"/pricing":              "Pricing",
	"/signup":               "Sign up",
	"/blog":                 "Blog",
	"/blog/article-1":       "Launch notes",
	"/blog/article-2":       "Reading your metrics",
	"/products":             "Products",
	"/products/widget-a":    "Widget A",
	"/products/gadget-b":    "Gadget B",
	"/docs":                 "Docs",
	"/docs/getting-started": "Getting started",
	"/docs/api-reference":   "API reference",
}

type goal struct {
	name string
	data func(rng *rand.Rand) map[string]any
}

// goals carry numeric properties (histograms) and text properties (pies)
var goals = []goal{
	{"purchase", func(rng *rand.Rand) map[string]any {
		return map[string]any{
			"price":    []int{900, 1900, 2999, 4900, 9900}[rng.IntN(5)] + rng.IntN(50),
			"currency": []string{"USD", "EUR", "GBP"}[rng.IntN(3)],
			"product":  []string{"starter", "premium_plan", "team"}[rng.IntN(3)],
		}
	}},
	{"newsletter_signup", func(rng *rand.Rand) map[string]any {
		return map[string]any{"source": []string{"footer", "blog", "popup"}[rng.IntN(3)]}
	}},
	{"video_watched", func(rng *rand.Rand) map[string]any {
		return map[string]any{
			"seconds": 5 + rng.IntN(600),
			"quality": []string{"720p", "1080p", "4k"}[rng.IntN(3)],
		}
	}},
	{"download_started", func(rng *rand.Rand) map[string]any {
		return map[string]any{
			"filename": []string{"whitepaper.pdf", "pricing.pdf", "sdk.zip"}[rng.IntN(3)],
			"size_kb":  100 + rng.IntN(5000),
		}
	}},
}
