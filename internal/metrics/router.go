// Package metrics answers dashboard metric requests. It authorizes the
// viewer, resolves filters, dispatches by metric type to a DataSource and
// post-processes the rows (language merging, channel attribution).
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"trafficlens/internal/channels"
	"trafficlens/internal/pkg/async"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// Point is one metric row
type Point struct {
	X string `json:"x"`
	Y int64  `json:"y"`
}

// Viewer identifies who is asking. Both fields may be empty for anonymous requests.
type Viewer struct {
	UserID     uint
	ShareToken string
}

// DataSource fetches raw metric rows for a website
type DataSource interface {
	SessionMetrics(ctx context.Context, websiteID uint, column string, filters Filters, limit, offset int) ([]Point, error)
	PageviewMetrics(ctx context.Context, websiteID uint, column string, filters Filters, limit, offset int) ([]Point, error)
	ChannelRows(ctx context.Context, websiteID uint, filters Filters) ([]channels.Row, error)
}

// Authorizer decides whether a viewer may read a website's metrics
type Authorizer interface {
	CanView(ctx context.Context, viewer Viewer, websiteID uint) (bool, error)
}

// ChannelAggregator attributes channel rows to channels
type ChannelAggregator interface {
	Aggregate(rows []channels.Row) []channels.Count
}

// DefaultBatchWorkers bounds concurrent fetches in RouteMany
const DefaultBatchWorkers = 4

type Router struct {
	source     DataSource
	authorizer Authorizer
	aggregator ChannelAggregator
	workers    int
	logger     *slog.Logger
}

func NewRouter(source DataSource, authorizer Authorizer, aggregator ChannelAggregator, workers int, logger *slog.Logger) *Router {
	if workers < 1 {
		workers = DefaultBatchWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		source:     source,
		authorizer: authorizer,
		aggregator: aggregator,
		workers:    workers,
		logger:     logger,
	}
}

// Route answers a single metric query for a website.
func (r *Router) Route(ctx context.Context, websiteID uint, q Query, viewer Viewer) ([]Point, error) {
	if err := r.Authorize(ctx, websiteID, viewer); err != nil {
		return nil, err
	}

	filters, err := q.Resolve()
	if err != nil {
		return nil, err
	}

	return r.fetch(ctx, websiteID, q, filters)
}

// RouteMany answers the same query for several metric types at once. The
// viewer is authorized once and every type is validated before any fetch.
func (r *Router) RouteMany(ctx context.Context, websiteID uint, types []string, q Query, viewer Viewer) (map[string][]Point, error) {
	if err := r.Authorize(ctx, websiteID, viewer); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(types))
	tasks := make([]async.Task[[]Point], 0, len(types))
	for _, t := range types {
		if !IsKnownType(t) {
			return nil, fmt.Errorf("%w: unknown metric type %q", ErrBadRequest, t)
		}
		if seen[t] {
			continue
		}
		seen[t] = true

		typed := q
		typed.Type = t
		filters, err := typed.Resolve()
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, async.Task[[]Point]{
			Name: t,
			Execute: func(ctx context.Context) ([]Point, error) {
				return r.fetch(ctx, websiteID, typed, filters)
			},
		})
	}

	results, err := async.NewPool[[]Point](r.workers).Run(ctx, tasks)
	if err != nil {
		r.logger.Error("batch metrics failed", "website_id", websiteID, "error", err)
		return nil, err
	}
	return results, nil
}

// Authorize returns ErrUnauthorized unless the viewer may read the website.
func (r *Router) Authorize(ctx context.Context, websiteID uint, viewer Viewer) error {
	ok, err := r.authorizer.CanView(ctx, viewer, websiteID)
	if err != nil {
		return fmt.Errorf("authorize website %d: %w", websiteID, err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (r *Router) fetch(ctx context.Context, websiteID uint, q Query, filters Filters) ([]Point, error) {
	switch {
	case IsSessionColumn(q.Type):
		points, err := r.source.SessionMetrics(ctx, websiteID, q.Type, filters, q.Limit, q.Offset)
		if err != nil {
			return nil, fmt.Errorf("session metrics %s: %w", q.Type, err)
		}
		if q.Type == "language" {
			return mergeLanguages(points), nil
		}
		return points, nil

	case IsEventColumn(q.Type):
		points, err := r.source.PageviewMetrics(ctx, websiteID, q.Type, filters, q.Limit, q.Offset)
		if err != nil {
			return nil, fmt.Errorf("pageview metrics %s: %w", q.Type, err)
		}
		return points, nil

	case q.Type == TypeChannel:
		rows, err := r.source.ChannelRows(ctx, websiteID, filters)
		if err != nil {
			return nil, fmt.Errorf("channel rows: %w", err)
		}
		counts := r.aggregator.Aggregate(rows)
		search := strings.ToLower(q.Search)
		points := make([]Point, 0, len(counts))
		for _, c := range counts {
			if search != "" && !strings.Contains(strings.ToLower(string(c.Key)), search) {
				continue
			}
			points = append(points, Point{X: string(c.Key), Y: c.Value})
		}
		return points, nil
	}

	return nil, fmt.Errorf("%w: unknown metric type %q", ErrBadRequest, q.Type)
}

// mergeLanguages folds locale variants ("en-US", "en-GB") into their
// lower-cased primary subtag, keeping first-seen order.
func mergeLanguages(points []Point) []Point {
	index := make(map[string]int, len(points))
	merged := make([]Point, 0, len(points))
	for _, p := range points {
		key, _, _ := strings.Cut(strings.ToLower(p.X), "-")
		if i, ok := index[key]; ok {
			merged[i].Y += p.Y
			continue
		}
		index[key] = len(merged)
		merged = append(merged, Point{X: key, Y: p.Y})
	}
	return merged
}
