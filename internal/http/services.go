package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"trafficlens/internal/charts"
	"trafficlens/internal/metrics"
	"trafficlens/internal/store"
)

// EventDataSource lists custom event properties and their values.
type EventDataSource interface {
	EventProperties(ctx context.Context, websiteID uint, filters metrics.Filters) ([]store.Property, error)
	EventValues(ctx context.Context, websiteID uint, eventName, property string, filters metrics.Filters) ([]charts.Observation, error)
}

// Pinger reports whether an external metrics source is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the collaborators the API handlers share.
type Services struct {
	Metrics *metrics.Router
	Events  EventDataSource
	Chart   charts.Options
	Source  Pinger // nil when metrics are read from the application database
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors to status codes.
func respondError(ctx *cartridge.Context, err error) error {
	switch {
	case errors.Is(err, metrics.ErrBadRequest):
		return ctx.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, metrics.ErrUnauthorized):
		return ctx.Status(fiber.StatusForbidden).JSON(errorResponse{Error: "forbidden"})
	default:
		ctx.Logger.Error("API request failed",
			slog.String("path", ctx.Path()),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}
}

// viewerFrom identifies who is asking: the logged-in user, a share token, or both.
func viewerFrom(ctx *cartridge.Context) metrics.Viewer {
	viewer := metrics.Viewer{ShareToken: ctx.Get("X-Share-Token")}
	if viewer.ShareToken == "" {
		viewer.ShareToken = ctx.Query("share")
	}
	if ctx.Session != nil {
		if userID, ok := ctx.Session.GetUserID(ctx.Ctx); ok {
			viewer.UserID = userID
		}
	}
	return viewer
}

func websiteIDParam(ctx *cartridge.Context) (uint, error) {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, badRequest("invalid website id %q", ctx.Params("id"))
	}
	return uint(id), nil
}

// parseQuery reads the metric query shared by the metrics and event data endpoints.
func parseQuery(ctx *cartridge.Context) (metrics.Query, error) {
	q := metrics.Query{
		Type:    ctx.Query("type"),
		Search:  ctx.Query("search"),
		Filters: make(map[string]string),
	}

	var err error
	if q.StartAt, err = int64Query(ctx, "startAt", true); err != nil {
		return q, err
	}
	if q.EndAt, err = int64Query(ctx, "endAt", true); err != nil {
		return q, err
	}

	limit, err := int64Query(ctx, "limit", false)
	if err != nil {
		return q, err
	}
	offset, err := int64Query(ctx, "offset", false)
	if err != nil {
		return q, err
	}
	if limit < 0 || offset < 0 {
		return q, badRequest("limit and offset must not be negative")
	}
	q.Limit, q.Offset = int(limit), int(offset)

	for _, name := range metrics.FilterNames {
		if v := ctx.Query(name); v != "" {
			q.Filters[name] = v
		}
	}
	return q, nil
}

func int64Query(ctx *cartridge.Context, key string, required bool) (int64, error) {
	raw := strings.TrimSpace(ctx.Query(key))
	if raw == "" {
		if required {
			return 0, badRequest("%s is required", key)
		}
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("%s must be an integer", key)
	}
	return v, nil
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", metrics.ErrBadRequest, fmt.Sprintf(format, args...))
}
