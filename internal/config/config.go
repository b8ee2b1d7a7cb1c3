package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the ledger (Data API)
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeBearer AuthMode = "bearer"
	AuthModeAPIKey AuthMode = "api_key"
)

// Cache backends
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendMySQL  = "mysql"
	CacheBackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`
	UserAgent   string `toml:"user_agent"`

	Catalog  CatalogConfig  `toml:"catalog"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Cache    CacheConfig    `toml:"cache"`
	Analysis AnalysisConfig `toml:"analysis"`
	Server   ServerConfig   `toml:"server"`
	Alerts   AlertsConfig   `toml:"alerts"`
}

// CatalogConfig is the Gamma API (markets, events)
type CatalogConfig struct {
	BaseURL string  `toml:"base_url"`
	RPS     float64 `toml:"rps"` // 0 = unlimited
}

// LedgerConfig is the Data API (holders, positions, leaderboard)
type LedgerConfig struct {
	BaseURL      string            `toml:"base_url"`
	RPS          float64           `toml:"rps"`
	AuthMode     AuthMode          `toml:"auth_mode"`
	BearerToken  string            `toml:"bearer_token"`
	APIKey       string            `toml:"api_key"`
	ExtraHeaders map[string]string `toml:"extra_headers"`
}

// CacheConfig selects and tunes the persistent response cache
type CacheConfig struct {
	Enabled       bool          `toml:"enabled"`
	Backend       string        `toml:"backend"` // sqlite, mysql, redis
	Directory     string        `toml:"directory"`
	MySQLDSN      string        `toml:"mysql_dsn"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	CatalogTTL    time.Duration `toml:"catalog_ttl"`
	LedgerTTL     time.Duration `toml:"ledger_ttl"`
	PruneSchedule string        `toml:"prune_schedule"`
}

// AnalysisConfig holds the default analysis options
type AnalysisConfig struct {
	MinProfit           float64       `toml:"min_profit"`
	HoldersLimit        int           `toml:"holders_limit"`
	MinBalance          float64       `toml:"min_balance"`
	MaxClosedPositions  int           `toml:"max_closed_positions"`
	ClosedPageSize      int           `toml:"closed_page_size"`
	ConsensusThreshold  float64       `toml:"consensus_threshold"`
	WhaleThreshold      float64       `toml:"whale_threshold"`
	MinQualifiedWallets int           `toml:"min_qualified_wallets"`
	Concurrency         int           `toml:"concurrency"`
	PerCallTimeout      time.Duration `toml:"per_call_timeout"`
}

// ServerConfig is the HTTP API
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// AlertsConfig selects where recommendation reports go
type AlertsConfig struct {
	Mode               string   `toml:"mode"` // comma-separated: none, log, discord
	DiscordWebhookURLs []string `toml:"discord_webhook_urls"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Environment: "production",
		LogLevel:    "info",
		UserAgent:   "polysignal/0.1",
		Catalog: CatalogConfig{
			BaseURL: "https://gamma-api.polymarket.com",
		},
		Ledger: LedgerConfig{
			BaseURL:      "https://data-api.polymarket.com",
			AuthMode:     AuthModeNone,
			ExtraHeaders: map[string]string{},
		},
		Cache: CacheConfig{
			Enabled:       true,
			Backend:       CacheBackendSQLite,
			Directory:     defaultCacheDir(),
			CatalogTTL:    6 * time.Hour,
			LedgerTTL:     5 * time.Minute,
			PruneSchedule: "@every 1h",
		},
		Analysis: AnalysisConfig{
			MinProfit:           5000,
			HoldersLimit:        20,
			MinBalance:          1,
			MaxClosedPositions:  500,
			ClosedPageSize:      50,
			ConsensusThreshold:  0.62,
			WhaleThreshold:      0.60,
			MinQualifiedWallets: 5,
			Concurrency:         8,
			PerCallTimeout:      25 * time.Second,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Alerts: AlertsConfig{
			Mode: "none",
		},
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".polysignal-cache"
	}
	return filepath.Join(home, ".polysignal-cache")
}

// AlertModes returns the trimmed, non-empty entries of Alerts.Mode
func (c *Config) AlertModes() []string {
	var modes []string
	for _, mode := range strings.Split(c.Alerts.Mode, ",") {
		if mode = strings.TrimSpace(mode); mode != "" {
			modes = append(modes, mode)
		}
	}
	return modes
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base_url is required")
	}
	if c.Ledger.BaseURL == "" {
		return fmt.Errorf("ledger base_url is required")
	}

	switch c.Ledger.AuthMode {
	case AuthModeNone:
	case AuthModeBearer:
		if c.Ledger.BearerToken == "" {
			return fmt.Errorf("DATA_API_BEARER_TOKEN is required when auth_mode is bearer")
		}
	case AuthModeAPIKey:
		if c.Ledger.APIKey == "" {
			return fmt.Errorf("DATA_API_API_KEY is required when auth_mode is api_key")
		}
	default:
		return fmt.Errorf("invalid ledger auth_mode: %s (must be none, bearer, or api_key)", c.Ledger.AuthMode)
	}

	switch c.Cache.Backend {
	case CacheBackendSQLite:
		if c.Cache.Directory == "" {
			return fmt.Errorf("cache directory is required for the sqlite backend")
		}
	case CacheBackendMySQL:
		if c.Cache.MySQLDSN == "" {
			return fmt.Errorf("CACHE_MYSQL_DSN is required for the mysql backend")
		}
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be sqlite, mysql, or redis)", c.Cache.Backend)
	}

	a := c.Analysis
	if a.ConsensusThreshold < 0 || a.ConsensusThreshold > 1 {
		return fmt.Errorf("consensus_threshold must be within [0,1], got %v", a.ConsensusThreshold)
	}
	if a.WhaleThreshold < 0 || a.WhaleThreshold > 1 {
		return fmt.Errorf("whale_threshold must be within [0,1], got %v", a.WhaleThreshold)
	}
	if a.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", a.Concurrency)
	}

	hasDiscord := false
	for _, mode := range c.AlertModes() {
		switch mode {
		case "none", "log":
		case "discord":
			hasDiscord = true
		default:
			return fmt.Errorf("invalid alert mode: %s (valid values: none, log, discord)", mode)
		}
	}
	if hasDiscord && len(c.Alerts.DiscordWebhookURLs) == 0 {
		return fmt.Errorf("DISCORD_WEBHOOK_URLS is required when discord is in the alert mode")
	}

	return nil
}
