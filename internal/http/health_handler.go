package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	DBStatus      string    `json:"db_status"`
	MetricsStatus string    `json:"metrics_status,omitempty"`
}

// HealthIndexAction checks the application database and, when metrics are
// read from elsewhere, the metrics source.
func HealthIndexAction(svc *Services) func(*cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		health := HealthStatus{
			Status:    "ok",
			Timestamp: time.Now(),
			DBStatus:  "ok",
		}

		db := ctx.DBManager.GetConnection()
		if db == nil {
			health.DBStatus = "error"
			ctx.Logger.Error("Database connection unavailable")
		} else if sqlDB, err := db.DB(); err != nil {
			health.DBStatus = "error"
			ctx.Logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.Ping(); err != nil {
			health.DBStatus = "error"
			ctx.Logger.Error("Database ping failed", slog.Any("error", err))
		}

		if svc != nil && svc.Source != nil {
			health.MetricsStatus = "ok"
			pingCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
			defer cancel()
			if err := svc.Source.Ping(pingCtx); err != nil {
				health.MetricsStatus = "error"
				ctx.Logger.Error("Metrics source ping failed", slog.Any("error", err))
			}
		}

		if health.DBStatus != "ok" || health.MetricsStatus == "error" {
			health.Status = "degraded"
		}

		return ctx.JSON(health)
	}
}
