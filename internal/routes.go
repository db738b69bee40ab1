package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"trafficlens/internal/channels"
	"trafficlens/internal/config"
	"trafficlens/internal/http"
	"trafficlens/internal/store"
)

// shareCORSConfig lets embedded public dashboards read metrics with a share token.
var shareCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, X-Share-Token",
}

// SetupSession configures session management on the server.
func SetupSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: cfg.AppName + "_session",
		Secret:     cfg.GetSessionSecret(),
		TTL:        time.Duration(cfg.GetLoginSessionTimeout()) * time.Second,
		Secure:     cfg.IsProduction(),
		LoginPath:  "/login",
	})
	srv.SetSession(sessionMgr)
}

// MountAppRoutes mounts all routes with metrics read from the application
// database and the built-in channel rules.
func MountAppRoutes(srv *cartridge.Server) {
	SetupSession(srv)

	cfg := config.GetConfig()
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	registry := channels.NewRegistry(channels.Default(), logger)
	MountRoutes(srv, NewServices(cfg, db, store.New(db, logger), registry, logger))
}

// MountRoutes mounts the API on srv. The session manager must already be set.
func MountRoutes(srv *cartridge.Server, svc *http.Services) {
	cfg := config.GetConfig()

	// Rate limiting would interfere with tests, so it only runs in production
	apiRateLimiter := func(c *fiber.Ctx) error {
		return c.Next()
	}
	if cfg.IsProduction() {
		apiRateLimiter = cartridgemiddleware.RateLimiter(
			cartridgemiddleware.WithMax(120),
			cartridgemiddleware.WithDuration(time.Minute),
		)
	}

	// Metrics endpoints are read-only and identify the viewer themselves
	// (session or share token), so they skip the session redirect middleware.
	apiConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         shareCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{apiRateLimiter},
	}

	srv.Get("/_health", http.HealthIndexAction(svc))
	srv.Head("/_health", http.HealthIndexAction(svc))

	srv.Get("/api/websites/:id/metrics", http.MetricsAction(svc), apiConfig)
	srv.Get("/api/websites/:id/metrics/batch", http.MetricsBatchAction(svc), apiConfig)
	srv.Get("/api/websites/:id/event-data/properties", http.EventPropertiesAction(svc), apiConfig)
	srv.Get("/api/websites/:id/event-data/values", http.EventValuesAction(svc), apiConfig)
}
