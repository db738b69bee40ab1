// main.go - Admin control tool for trafficlens
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"trafficlens/internal"
	"trafficlens/internal/channels"
	"trafficlens/internal/charts"
	"trafficlens/internal/config"
	"trafficlens/internal/metrics"
	"trafficlens/internal/seeder"
	"trafficlens/internal/store"
	"trafficlens/internal/users"
	"trafficlens/internal/websites"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

var stdout io.Writer = os.Stdout

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&CreateUserCommand{},
	&SetRoleCommand{},
	&ShareCommand{},
	&MigrateCommand{},
	&SeedCommand{},
	&ClassifyCommand{},
	&ChartCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs(os.Args[1:])

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsage()
		os.Exit(1)
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
		log.Println("Proceeding with limited functionality...")
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
			app.Close()
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// CreateUserCommand creates a user with a role
type CreateUserCommand struct{}

func (c *CreateUserCommand) Name() string        { return "create-user" }
func (c *CreateUserCommand) Description() string { return "Creates a user: create-user <email> [admin|viewer]" }

func (c *CreateUserCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <email> [admin|viewer]", c.Name())
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	role := users.RoleViewer
	if len(args) > 1 {
		var err error
		if role, err = parseRole(args[1]); err != nil {
			return err
		}
	}

	user, err := users.CreateUser(app.DBManager.GetConnection(), args[0], role)
	if errors.Is(err, users.ErrUserExists) {
		log.Printf("User %s already exists", args[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "Created %s user %s (id %d)\n", user.Role, user.Email, user.ID)
	return nil
}

// SetRoleCommand changes the role of an existing user
type SetRoleCommand struct{}

func (c *SetRoleCommand) Name() string        { return "set-role" }
func (c *SetRoleCommand) Description() string { return "Changes a user's role: set-role <email> <admin|viewer>" }

func (c *SetRoleCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s <email> <admin|viewer>", c.Name())
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	role, err := parseRole(args[1])
	if err != nil {
		return err
	}
	if err := users.SetRole(app.DBManager.GetConnection(), args[0], role); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}

// ShareCommand enables or disables token access to a website's metrics
type ShareCommand struct{}

func (c *ShareCommand) Name() string { return "share" }
func (c *ShareCommand) Description() string {
	return "Prints a share token for a website: share [--disable] <domain>"
}

func (c *ShareCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	disable := fs.Bool("disable", false, "revoke the current share token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: %s [--disable] <domain>", c.Name())
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	db := app.DBManager.GetConnection()
	site, err := websites.GetWebsiteByDomain(db, fs.Arg(0))
	if err != nil {
		return fmt.Errorf("website %s: %w", fs.Arg(0), err)
	}

	if *disable {
		return websites.DisableSharing(db, site.ID)
	}

	token, err := websites.EnableSharing(db, site.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with sample traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample traffic" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	events := fs.Int("events", 10000, "number of pageviews to generate")
	domain := fs.String("domain", "", "specific domain to seed (seeds all defaults if empty)")
	seed := fs.Uint64("seed", 0, "random seed, 0 for a random one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *events, *seed)
	if *domain != "" {
		return se.SeedDomain(ctx, *domain)
	}
	return se.Run(ctx)
}

// ClassifyCommand shows which channel a referrer and landing query fall into
type ClassifyCommand struct{}

func (c *ClassifyCommand) Name() string { return "classify" }
func (c *ClassifyCommand) Description() string {
	return "Classifies a visit: classify <referrer-domain|-> [query-string]"
}

func (c *ClassifyCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: %s <referrer-domain|-> [query-string]", c.Name())
	}

	domain, query := args[0], ""
	if domain == "-" {
		domain = ""
	}
	if len(args) == 2 {
		query = args[1]
	}

	classifier := channels.Default()
	if app != nil && app.Registry != nil {
		classifier = app.Registry.Classifier()
	}

	channel, rule := classifier.Explain(domain, query)
	fmt.Fprintf(stdout, "%s\t%s\n", channel, rule)
	return nil
}

// ChartCommand prints the chart built from one event property as JSON
type ChartCommand struct{}

func (c *ChartCommand) Name() string { return "chart" }
func (c *ChartCommand) Description() string {
	return "Charts an event property: chart --domain d --event e --property p [--days 30] [--strategy median|mean] [--locale en]"
}

func (c *ChartCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("chart", flag.ContinueOnError)
	domain := fs.String("domain", "", "website domain")
	event := fs.String("event", "", "custom event name")
	property := fs.String("property", "", "event data property")
	days := fs.Int("days", 30, "days of data up to now")
	strategy := fs.String("strategy", "", "histogram strategy (median or mean)")
	locale := fs.String("locale", "en", "locale for axis labels")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *domain == "" || *event == "" || *property == "" {
		return fmt.Errorf("--domain, --event and --property are required")
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	opts, err := chartOptions(app.Services.Chart, *strategy, *locale)
	if err != nil {
		return err
	}

	site, err := websites.GetWebsiteByDomain(app.DBManager.GetConnection(), *domain)
	if err != nil {
		return fmt.Errorf("website %s: %w", *domain, err)
	}

	end := time.Now()
	filters, err := metrics.Query{
		StartAt: end.AddDate(0, 0, -*days).UnixMilli(),
		EndAt:   end.UnixMilli(),
	}.Resolve()
	if err != nil {
		return err
	}

	values, err := app.Services.Events.EventValues(ctx, site.ID, *event, *property, filters)
	if err != nil {
		return err
	}

	series, err := charts.Build(values, opts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(series)
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection()
	cfg := config.GetConfig()

	counts := []struct {
		label string
		model any
	}{
		{"Users", &users.User{}},
		{"Websites", &websites.Website{}},
		{"Sessions", &store.Session{}},
		{"Events", &store.WebsiteEvent{}},
	}

	fmt.Fprintln(stdout, "System Status:")
	fmt.Fprintln(stdout, "- Database: Connected")
	for _, c := range counts {
		var n int64
		if err := db.Model(c.model).Count(&n).Error; err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		fmt.Fprintf(stdout, "- %s: %d\n", c.label, n)
	}

	fmt.Fprintf(stdout, "- Metrics source: %s\n", cfg.MetricsSource)
	fmt.Fprintf(stdout, "- Histogram strategy: %s\n", app.Services.Chart.Strategy)
	if cfg.ChannelRulesPath != "" {
		fmt.Fprintf(stdout, "- Channel rules: %s\n", cfg.ChannelRulesPath)
	} else {
		fmt.Fprintln(stdout, "- Channel rules: built-in")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	stats := sqlDB.Stats()
	fmt.Fprintf(stdout, "- Open Connections: %d (in use %d, idle %d)\n", stats.OpenConnections, stats.InUse, stats.Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	showUsage()
	return nil
}

// Helper functions

// parseArgs splits the command name from its arguments
func parseArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func showUsage() {
	fmt.Fprintln(stdout, "Usage: tlctl [command] [args...]")
	fmt.Fprintln(stdout, "Available commands:")
	for _, cmd := range commands {
		fmt.Fprintf(stdout, "  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func parseRole(s string) (users.Role, error) {
	switch role := users.Role(s); role {
	case users.RoleAdmin, users.RoleViewer:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q (want admin or viewer)", s)
}

// chartOptions applies command line overrides to the configured chart options
func chartOptions(base charts.Options, strategy, locale string) (charts.Options, error) {
	opts := base
	if strategy != "" {
		s, err := charts.ParseStrategy(strategy)
		if err != nil {
			return opts, err
		}
		opts.Strategy = s
	}
	if locale != "" {
		tag, err := language.Parse(locale)
		if err != nil {
			return opts, fmt.Errorf("invalid locale %q: %w", locale, err)
		}
		opts.Locale = tag
	}
	return opts, nil
}
