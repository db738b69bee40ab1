package http

import (
	"github.com/karloscodes/cartridge"

	"trafficlens/internal/charts"
)

// EventValuesResponse carries the raw value counts and the chart built from them.
type EventValuesResponse struct {
	Values []charts.Observation `json:"values"`
	Chart  charts.Series        `json:"chart"`
}

// EventPropertiesAction lists the properties seen on custom events.
//
// GET /api/websites/:id/event-data/properties?startAt=...&endAt=...
func EventPropertiesAction(svc *Services) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		websiteID, err := websiteIDParam(ctx)
		if err != nil {
			return respondError(ctx, err)
		}
		q, err := parseQuery(ctx)
		if err != nil {
			return respondError(ctx, err)
		}
		// search narrows a metric type; event data has none
		q.Search = ""
		if err := svc.Metrics.Authorize(ctx.UserContext(), websiteID, viewerFrom(ctx)); err != nil {
			return respondError(ctx, err)
		}
		filters, err := q.Resolve()
		if err != nil {
			return respondError(ctx, err)
		}

		props, err := svc.Events.EventProperties(ctx.UserContext(), websiteID, filters)
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(props)
	}
}

// EventValuesAction counts the values of one event property and charts them.
//
// GET /api/websites/:id/event-data/values?event=purchase&property=amount&startAt=...&endAt=...
func EventValuesAction(svc *Services) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		websiteID, err := websiteIDParam(ctx)
		if err != nil {
			return respondError(ctx, err)
		}
		q, err := parseQuery(ctx)
		if err != nil {
			return respondError(ctx, err)
		}
		// search narrows a metric type; event data has none
		q.Search = ""
		event, property := ctx.Query("event"), ctx.Query("property")
		if event == "" || property == "" {
			return respondError(ctx, badRequest("event and property are required"))
		}
		if err := svc.Metrics.Authorize(ctx.UserContext(), websiteID, viewerFrom(ctx)); err != nil {
			return respondError(ctx, err)
		}
		filters, err := q.Resolve()
		if err != nil {
			return respondError(ctx, err)
		}

		values, err := svc.Events.EventValues(ctx.UserContext(), websiteID, event, property, filters)
		if err != nil {
			return respondError(ctx, err)
		}

		opts := svc.Chart
		if raw := ctx.Query("strategy"); raw != "" {
			strategy, err := charts.ParseStrategy(raw)
			if err != nil {
				return respondError(ctx, badRequest("%v", err))
			}
			opts.Strategy = strategy
		}

		chart, err := charts.Build(values, opts)
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(EventValuesResponse{Values: values, Chart: chart})
	}
}
