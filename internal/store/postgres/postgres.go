// Package postgres serves metric rows from a Postgres database holding the
// sessions and website_events tables.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trafficlens/internal/channels"
	"trafficlens/internal/charts"
	"trafficlens/internal/metrics"
	"trafficlens/internal/store"
)

// PoolConfig sizes the connection pool
type PoolConfig struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	MaxConnIdleTime   time.Duration
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

// NewPool opens a pool and pings it so an unreachable database fails at startup.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
  id         BIGSERIAL PRIMARY KEY,
  website_id BIGINT NOT NULL,
  browser    TEXT NOT NULL DEFAULT '',
  os         TEXT NOT NULL DEFAULT '',
  device     TEXT NOT NULL DEFAULT '',
  screen     TEXT NOT NULL DEFAULT '',
  language   TEXT NOT NULL DEFAULT '',
  country    TEXT NOT NULL DEFAULT '',
  region     TEXT NOT NULL DEFAULT '',
  city       TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sessions_website_id ON sessions (website_id);

CREATE TABLE IF NOT EXISTS website_events (
  id              BIGSERIAL PRIMARY KEY,
  website_id      BIGINT NOT NULL,
  session_id      BIGINT NOT NULL,
  event_type      INTEGER NOT NULL DEFAULT 1,
  url_path        TEXT NOT NULL DEFAULT '',
  url_query       TEXT NOT NULL DEFAULT '',
  referrer_domain TEXT NOT NULL DEFAULT '',
  referrer_path   TEXT NOT NULL DEFAULT '',
  page_title      TEXT NOT NULL DEFAULT '',
  hostname        TEXT NOT NULL DEFAULT '',
  event_name      TEXT NOT NULL DEFAULT '',
  tag             TEXT NOT NULL DEFAULT '',
  event_data      JSONB,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_website_events_site_time ON website_events (website_id, created_at);
CREATE INDEX IF NOT EXISTS idx_website_events_session_id ON website_events (session_id);
`

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

var _ metrics.DataSource = (*Store)(nil)

// Migrate creates the tables the store reads if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func (s *Store) SessionMetrics(ctx context.Context, websiteID uint, column string, filters metrics.Filters, limit, offset int) ([]metrics.Point, error) {
	stmt, err := store.SessionMetricsSQL(store.Postgres{}, websiteID, column, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.points(ctx, "session metrics", stmt)
}

func (s *Store) PageviewMetrics(ctx context.Context, websiteID uint, column string, filters metrics.Filters, limit, offset int) ([]metrics.Point, error) {
	stmt, err := store.PageviewMetricsSQL(store.Postgres{}, websiteID, column, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.points(ctx, "pageview metrics", stmt)
}

func (s *Store) ChannelRows(ctx context.Context, websiteID uint, filters metrics.Filters) ([]channels.Row, error) {
	stmt, err := store.ChannelRowsSQL(store.Postgres{}, websiteID, filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("channel rows: %w", err)
	}
	defer rows.Close()

	out := []channels.Row{}
	for rows.Next() {
		var r channels.Row
		if err := rows.Scan(&r.Domain, &r.Query, &r.Visitors); err != nil {
			return nil, fmt.Errorf("channel rows: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("channel rows: %w", err)
	}
	return out, nil
}

// EventProperties lists the payload keys of custom events in range.
func (s *Store) EventProperties(ctx context.Context, websiteID uint, filters metrics.Filters) ([]store.Property, error) {
	tally := store.NewPropertyTally()
	err := s.eachPayload(ctx, websiteID, "", filters, func(eventName string, data []byte) {
		tally.Add(eventName, data)
	})
	if err != nil {
		return nil, fmt.Errorf("event properties: %w", err)
	}
	return tally.Properties(), nil
}

// EventValues counts the distinct values of one payload key of one event.
func (s *Store) EventValues(ctx context.Context, websiteID uint, eventName, property string, filters metrics.Filters) ([]charts.Observation, error) {
	tally := store.NewValueTally(property)
	err := s.eachPayload(ctx, websiteID, eventName, filters, func(_ string, data []byte) {
		tally.Add(data)
	})
	if err != nil {
		return nil, fmt.Errorf("event values: %w", err)
	}
	return tally.Observations(), nil
}

func (s *Store) points(ctx context.Context, name string, stmt store.Statement) ([]metrics.Point, error) {
	s.logger.Debug("metrics query", slog.String("query", name), slog.String("sql", stmt.SQL))

	rows, err := s.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (metrics.Point, error) {
		var p metrics.Point
		err := row.Scan(&p.X, &p.Y)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if points == nil {
		points = []metrics.Point{}
	}
	return points, nil
}

func (s *Store) eachPayload(ctx context.Context, websiteID uint, eventName string, filters metrics.Filters, fn func(eventName string, data []byte)) error {
	stmt, err := store.EventDataSQL(store.Postgres{}, websiteID, eventName, filters)
	if err != nil {
		return err
	}

	rows, err := s.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			data []byte
		)
		if err := rows.Scan(&name, &data); err != nil {
			return err
		}
		fn(name, data)
	}
	return rows.Err()
}
