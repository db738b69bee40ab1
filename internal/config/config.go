// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Metrics sources
const (
	SQLiteSource   = "sqlite"
	PostgresSource = "postgres"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName                    string   `mapstructure:"appname"`
	AppPort                    string   `mapstructure:"appport"`
	Environment                string   `mapstructure:"environment"`
	LogLevel                   LogLevel `mapstructure:"loglevel"`
	PrivateKey                 string   `mapstructure:"privatekey"`
	LoginSessionTimeoutSeconds int      `mapstructure:"loginsessiontimeoutseconds"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Metrics source settings
	MetricsSource       string `mapstructure:"metricssource"`
	PostgresURL         string `mapstructure:"postgresurl"`
	PostgresMaxConns    int32  `mapstructure:"postgresmaxconns"`
	PostgresMinConns    int32  `mapstructure:"postgresminconns"`
	PostgresConnTimeout int    `mapstructure:"postgresconnecttimeoutseconds"`

	// Chart and channel settings
	ChannelRulesPath       string `mapstructure:"channelrulespath"`
	ChannelRulesDebounceMs int    `mapstructure:"channelrulesdebouncems"`
	HistogramStrategy      string `mapstructure:"histogramstrategy"`
	BatchWorkers           int    `mapstructure:"batchworkers"`

	// Retention
	RetentionDays int `mapstructure:"retentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

const defaultPrivateKey = "88888888888888888888888888888888"

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "trafficlens")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelInfo))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("loginsessiontimeoutseconds", 604800) // 1 week
		v.SetDefault("storagepath", "storage")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("metricssource", SQLiteSource)
		v.SetDefault("postgresmaxconns", 10)
		v.SetDefault("postgresminconns", 1)
		v.SetDefault("postgresconnecttimeoutseconds", 5)
		v.SetDefault("channelrulesdebouncems", 500)
		v.SetDefault("histogramstrategy", "median")
		v.SetDefault("batchworkers", 4)
		v.SetDefault("retentiondays", 0) // keep forever

		v.BindEnv("appname", "TRAFFICLENS_APP_NAME")
		v.BindEnv("appport", "TRAFFICLENS_APP_PORT")
		v.BindEnv("environment", "TRAFFICLENS_ENV")
		v.BindEnv("loglevel", "TRAFFICLENS_LOG_LEVEL")
		v.BindEnv("privatekey", "TRAFFICLENS_PRIVATE_KEY")
		v.BindEnv("loginsessiontimeoutseconds", "TRAFFICLENS_LOGIN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("storagepath", "TRAFFICLENS_STORAGE_PATH")
		v.BindEnv("publicdir", "TRAFFICLENS_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "TRAFFICLENS_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "TRAFFICLENS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "TRAFFICLENS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "TRAFFICLENS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "TRAFFICLENS_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "TRAFFICLENS_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "TRAFFICLENS_DB_MAX_IDLE_CONNS")
		v.BindEnv("metricssource", "TRAFFICLENS_METRICS_SOURCE")
		v.BindEnv("postgresurl", "TRAFFICLENS_POSTGRES_URL")
		v.BindEnv("postgresmaxconns", "TRAFFICLENS_POSTGRES_MAX_CONNS")
		v.BindEnv("postgresminconns", "TRAFFICLENS_POSTGRES_MIN_CONNS")
		v.BindEnv("postgresconnecttimeoutseconds", "TRAFFICLENS_POSTGRES_CONNECT_TIMEOUT_SECONDS")
		v.BindEnv("channelrulespath", "TRAFFICLENS_CHANNEL_RULES_PATH")
		v.BindEnv("channelrulesdebouncems", "TRAFFICLENS_CHANNEL_RULES_DEBOUNCE_MS")
		v.BindEnv("histogramstrategy", "TRAFFICLENS_HISTOGRAM_STRATEGY")
		v.BindEnv("batchworkers", "TRAFFICLENS_BATCH_WORKERS")
		v.BindEnv("retentiondays", "TRAFFICLENS_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique TRAFFICLENS_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	switch c.MetricsSource {
	case SQLiteSource:
	case PostgresSource:
		if c.PostgresURL == "" {
			return fmt.Errorf("metrics source %s requires TRAFFICLENS_POSTGRES_URL", c.MetricsSource)
		}
	default:
		return fmt.Errorf("invalid metrics source: %s", c.MetricsSource)
	}

	switch c.HistogramStrategy {
	case "median", "mean":
	default:
		return fmt.Errorf("invalid histogram strategy: %s", c.HistogramStrategy)
	}

	if c.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetLoginSessionTimeout returns the login session timeout in seconds.
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetMaxOpenConns returns MaxOpenConns for the SQLite pool. Tests use a
// single connection; other environments allow concurrent dashboard reads.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	if c.Environment == Test {
		return 1
	}
	return 10
}

// GetMaxIdleConns returns MaxIdleConns for the SQLite pool.
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}
	if c.Environment == Test {
		return 1
	}
	return 5
}

// GetChannelRulesDebounce returns how long rule file writes settle before a reload.
func (c *Config) GetChannelRulesDebounce() time.Duration {
	if c.ChannelRulesDebounceMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.ChannelRulesDebounceMs) * time.Millisecond
}

// GetPostgresConnectTimeout returns the startup ping timeout for the Postgres pool.
func (c *Config) GetPostgresConnectTimeout() time.Duration {
	return time.Duration(c.PostgresConnTimeout) * time.Second
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
