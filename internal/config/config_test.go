package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		AppName:           "trafficlens",
		Environment:       Test,
		PrivateKey:        defaultPrivateKey,
		MetricsSource:     SQLiteSource,
		HistogramStrategy: "median",
	}
}

func TestGetConfigReadsEnvironment(t *testing.T) {
	t.Setenv("TRAFFICLENS_ENV", Test)
	t.Setenv("TRAFFICLENS_STORAGE_PATH", "/tmp/tl")
	t.Setenv("TRAFFICLENS_HISTOGRAM_STRATEGY", "mean")
	t.Setenv("TRAFFICLENS_BATCH_WORKERS", "7")
	Reset()
	t.Cleanup(Reset)

	cfg := GetConfig()
	assert.True(t, cfg.IsTest())
	assert.Equal(t, "mean", cfg.HistogramStrategy)
	assert.Equal(t, 7, cfg.BatchWorkers)
	assert.Equal(t, SQLiteSource, cfg.MetricsSource)
	assert.Equal(t, "/tmp/tl/trafficlens-test.db", cfg.GetDatabasePath())
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown environment", func(c *Config) { c.Environment = "staging" }, "invalid environment"},
		{"postgres without url", func(c *Config) { c.MetricsSource = PostgresSource }, "requires TRAFFICLENS_POSTGRES_URL"},
		{"postgres with url", func(c *Config) {
			c.MetricsSource = PostgresSource
			c.PostgresURL = "postgres://localhost/tl"
		}, ""},
		{"unknown source", func(c *Config) { c.MetricsSource = "mysql" }, "invalid metrics source"},
		{"unknown strategy", func(c *Config) { c.HistogramStrategy = "mode" }, "invalid histogram strategy"},
		{"missing key", func(c *Config) { c.PrivateKey = "" }, "private key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.GetChannelRulesDebounce())

	cfg.ChannelRulesDebounceMs = 50
	cfg.PostgresConnTimeout = 3
	assert.Equal(t, 50*time.Millisecond, cfg.GetChannelRulesDebounce())
	assert.Equal(t, 3*time.Second, cfg.GetPostgresConnectTimeout())
}

func TestPoolSizes(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = Production
	assert.Equal(t, 10, cfg.GetMaxOpenConns())
	assert.Equal(t, 5, cfg.GetMaxIdleConns())

	cfg.DatabaseMaxOpenConns = 3
	cfg.DatabaseMaxIdleConns = 2
	assert.Equal(t, 3, cfg.GetMaxOpenConns())
	assert.Equal(t, 2, cfg.GetMaxIdleConns())
}
