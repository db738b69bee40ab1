// main.go - trafficlens API server
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trafficlens/internal"
	"trafficlens/internal/config"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.GetConfig()

	app, err := internal.NewAppWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer app.Close()

	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := app.StartAsync(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	log.Printf("trafficlens listening on :%s (metrics source: %s, histogram: %s)",
		cfg.GetPort(), cfg.MetricsSource, cfg.HistogramStrategy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Println("Shutting down...")
	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
