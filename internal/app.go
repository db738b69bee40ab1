// Package internal contains core application functionality
package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"trafficlens/internal/channels"
	"trafficlens/internal/charts"
	"trafficlens/internal/config"
	"trafficlens/internal/database"
	"trafficlens/internal/http"
	"trafficlens/internal/jobs"
	"trafficlens/internal/metrics"
	"trafficlens/internal/store"
	"trafficlens/internal/store/postgres"
	"trafficlens/internal/websites"
)

// Application wraps cartridge.Application with trafficlens-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Registry  *channels.Registry
	Services  *http.Services

	pool *pgxpool.Pool
}

// metricsStore is what a metrics backend must answer.
type metricsStore interface {
	metrics.DataSource
	http.EventDataSource
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config. Any
// rules watcher or Postgres pool opened along the way is released if a later
// step fails.
func NewAppWithConfig(cfg *config.Config) (_ *Application, err error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db := dbManager.GetConnection()

	registry, watcher, err := LoadChannelRules(cfg, logger)
	if err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	defer func() {
		if err == nil {
			return
		}
		if watcher != nil {
			watcher.Stop()
		}
		if pool != nil {
			pool.Close()
		}
	}()

	var source metricsStore = store.New(db, logger)
	if cfg.MetricsSource == config.PostgresSource {
		pool, err = openPostgres(cfg, logger)
		if err != nil {
			return nil, err
		}
		source = postgres.New(pool, logger)
	}

	svc := NewServices(cfg, db, source, registry, logger)
	if pool != nil {
		svc.Source = pool
	}

	scheduler := jobs.NewScheduler(watcher, jobs.NewCleanupJob(db, logger, cfg.RetentionDays), logger)

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		RouteMountFunc: func(srv *cartridge.Server) {
			SetupSession(srv)
			MountRoutes(srv, svc)
		},
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Registry:    registry,
		Services:    svc,
		pool:        pool,
	}, nil
}

// Close releases the Postgres pool, if one was opened.
func (a *Application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// NewServices wires the metric router, event data and chart options.
func NewServices(cfg *config.Config, db *gorm.DB, source metricsStore, registry *channels.Registry, logger *slog.Logger) *http.Services {
	strategy, err := charts.ParseStrategy(cfg.HistogramStrategy)
	if err != nil {
		logger.Warn("Unknown histogram strategy, using median", slog.String("strategy", cfg.HistogramStrategy))
		strategy = charts.StrategyMedian
	}

	return &http.Services{
		Metrics: metrics.NewRouter(source, websites.NewAccess(db), registry, cfg.BatchWorkers, logger),
		Events:  source,
		Chart:   charts.Options{Strategy: strategy},
	}
}

// LoadChannelRules builds the channel registry. With an override file
// configured the file must load, and a watcher is returned to keep it fresh.
func LoadChannelRules(cfg *config.Config, logger *slog.Logger) (*channels.Registry, *channels.Watcher, error) {
	registry := channels.NewRegistry(channels.Default(), logger)
	if cfg.ChannelRulesPath == "" {
		return registry, nil, nil
	}

	if err := registry.ReloadFile(cfg.ChannelRulesPath); err != nil {
		return nil, nil, fmt.Errorf("failed to load channel rules: %w", err)
	}

	watcher, err := channels.NewWatcher(registry, cfg.ChannelRulesPath, cfg.GetChannelRulesDebounce(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to watch channel rules: %w", err)
	}
	return registry, watcher, nil
}

func openPostgres(cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetPostgresConnectTimeout())
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL:            cfg.PostgresURL,
		MaxConns:       cfg.PostgresMaxConns,
		MinConns:       cfg.PostgresMinConns,
		ConnectTimeout: cfg.GetPostgresConnectTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := postgres.New(pool, logger).Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}

	logger.Info("Reading metrics from postgres",
		slog.Int("max_conns", int(cfg.PostgresMaxConns)))
	return pool, nil
}
