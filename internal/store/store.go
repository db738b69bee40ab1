// Package store reads metric rows for the metrics router. Store is backed by
// the application's SQLite database through GORM; the postgres subpackage
// serves the same queries from a Postgres pool.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"trafficlens/internal/channels"
	"trafficlens/internal/charts"
	"trafficlens/internal/metrics"
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

var _ metrics.DataSource = (*Store)(nil)

func (s *Store) SessionMetrics(ctx context.Context, websiteID uint, column string, filters metrics.Filters, limit, offset int) ([]metrics.Point, error) {
	stmt, err := SessionMetricsSQL(SQLite{}, websiteID, column, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.points(ctx, "session metrics", stmt)
}

func (s *Store) PageviewMetrics(ctx context.Context, websiteID uint, column string, filters metrics.Filters, limit, offset int) ([]metrics.Point, error) {
	stmt, err := PageviewMetricsSQL(SQLite{}, websiteID, column, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.points(ctx, "pageview metrics", stmt)
}

func (s *Store) ChannelRows(ctx context.Context, websiteID uint, filters metrics.Filters) ([]channels.Row, error) {
	stmt, err := ChannelRowsSQL(SQLite{}, websiteID, filters)
	if err != nil {
		return nil, err
	}

	rows := []channels.Row{}
	if err := s.db.WithContext(ctx).Raw(stmt.SQL, stmt.Args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("channel rows: %w", err)
	}
	return rows, nil
}

// EventProperties lists the payload keys of custom events in range.
func (s *Store) EventProperties(ctx context.Context, websiteID uint, filters metrics.Filters) ([]Property, error) {
	tally := NewPropertyTally()
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
	tally := NewValueTally(property)
	err := s.eachPayload(ctx, websiteID, eventName, filters, func(_ string, data []byte) {
		tally.Add(data)
	})
	if err != nil {
		return nil, fmt.Errorf("event values: %w", err)
	}
	return tally.Observations(), nil
}

func (s *Store) points(ctx context.Context, name string, stmt Statement) ([]metrics.Point, error) {
	s.logger.Debug("metrics query", slog.String("query", name), slog.String("sql", stmt.SQL))

	points := []metrics.Point{}
	if err := s.db.WithContext(ctx).Raw(stmt.SQL, stmt.Args...).Scan(&points).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return points, nil
}

func (s *Store) eachPayload(ctx context.Context, websiteID uint, eventName string, filters metrics.Filters, fn func(eventName string, data []byte)) error {
	stmt, err := EventDataSQL(SQLite{}, websiteID, eventName, filters)
	if err != nil {
		return err
	}

	rows, err := s.db.WithContext(ctx).Raw(stmt.SQL, stmt.Args...).Rows()
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
