package http

import (
	"strings"

	"github.com/karloscodes/cartridge"
)

// MetricsAction returns the {x,y} rows of one metric type.
//
// GET /api/websites/:id/metrics?type=browser&startAt=...&endAt=...
func MetricsAction(svc *Services) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		websiteID, err := websiteIDParam(ctx)
		if err != nil {
			return respondError(ctx, err)
		}
		q, err := parseQuery(ctx)
		if err != nil {
			return respondError(ctx, err)
		}
		if q.Type == "" {
			return respondError(ctx, badRequest("type is required"))
		}

		points, err := svc.Metrics.Route(ctx.UserContext(), websiteID, q, viewerFrom(ctx))
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(points)
	}
}

// MetricsBatchAction returns several metric types keyed by type.
//
// GET /api/websites/:id/metrics/batch?types=browser,os,channel&startAt=...&endAt=...
func MetricsBatchAction(svc *Services) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		websiteID, err := websiteIDParam(ctx)
		if err != nil {
			return respondError(ctx, err)
		}
		q, err := parseQuery(ctx)
		if err != nil {
			return respondError(ctx, err)
		}

		var types []string
		for _, t := range strings.Split(ctx.Query("types"), ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		if len(types) == 0 {
			return respondError(ctx, badRequest("types is required"))
		}

		results, err := svc.Metrics.RouteMany(ctx.UserContext(), websiteID, types, q, viewerFrom(ctx))
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(results)
	}
}
