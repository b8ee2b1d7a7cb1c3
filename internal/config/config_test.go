package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 6*time.Hour, cfg.Cache.CatalogTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.LedgerTTL)
	assert.Equal(t, 0.62, cfg.Analysis.ConsensusThreshold)
	assert.Equal(t, 0.60, cfg.Analysis.WhaleThreshold)
	assert.Equal(t, 5, cfg.Analysis.MinQualifiedWallets)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POLYSIGNAL_MIN_PROFIT", "1234.5")
	t.Setenv("POLYSIGNAL_CONCURRENCY", "3")
	t.Setenv("POLYSIGNAL_TTL_DATA", "90")
	t.Setenv("POLYSIGNAL_TTL_GAMMA", "2h")
	t.Setenv("POLYSIGNAL_CACHE_DIR", t.TempDir())
	t.Setenv("POLYSIGNAL_DATA_API_EXTRA_HEADERS", `{"X-Test":"1"}`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1234.5, cfg.Analysis.MinProfit)
	assert.Equal(t, 3, cfg.Analysis.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.Cache.LedgerTTL)
	assert.Equal(t, 2*time.Hour, cfg.Cache.CatalogTTL)
	assert.Equal(t, "1", cfg.Ledger.ExtraHeaders["X-Test"])
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "polysignal.toml")
	contents := `
log_level = "debug"

[cache]
backend = "redis"
redis_addr = "localhost:6379"
ledger_ttl = "1m"

[analysis]
whale_threshold = 0.7
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.LedgerTTL)
	assert.Equal(t, 0.7, cfg.Analysis.WhaleThreshold)
	// Untouched keys keep their defaults.
	assert.Equal(t, 20, cfg.Analysis.HoldersLimit)
}

func TestSecretFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))

	t.Setenv("POLYSIGNAL_DATA_API_AUTH_MODE", "bearer")
	t.Setenv("POLYSIGNAL_DATA_API_BEARER_TOKEN_FILE", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Ledger.BearerToken)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bearer without token", func(c *Config) { c.Ledger.AuthMode = AuthModeBearer }, true},
		{"api key without key", func(c *Config) { c.Ledger.AuthMode = AuthModeAPIKey }, true},
		{"unknown auth mode", func(c *Config) { c.Ledger.AuthMode = "oauth" }, true},
		{"mysql without dsn", func(c *Config) { c.Cache.Backend = CacheBackendMySQL }, true},
		{"redis without addr", func(c *Config) { c.Cache.Backend = CacheBackendRedis }, true},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"consensus above one", func(c *Config) { c.Analysis.ConsensusThreshold = 1.2 }, true},
		{"whale below zero", func(c *Config) { c.Analysis.WhaleThreshold = -0.1 }, true},
		{"zero concurrency", func(c *Config) { c.Analysis.Concurrency = 0 }, true},
		{"discord without hooks", func(c *Config) { c.Alerts.Mode = "log,discord" }, true},
		{"discord with hooks", func(c *Config) {
			c.Alerts.Mode = "discord"
			c.Alerts.DiscordWebhookURLs = []string{"https://discord.example/hook"}
		}, false},
		{"unknown alert mode", func(c *Config) { c.Alerts.Mode = "smtp" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Cache.Directory = "/tmp/polysignal"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
