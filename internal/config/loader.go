package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/liamashdown/polysignal/internal/secrets"
)

const envPrefix = "POLYSIGNAL_"

// Load builds the configuration from the built-in defaults, an optional
// TOML file at path (skipped when path is empty), a .env file if present and
// finally POLYSIGNAL_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	// Missing .env is fine.
	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	setStr(&cfg.Environment, "ENVIRONMENT")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.UserAgent, "USER_AGENT")

	setStr(&cfg.Catalog.BaseURL, "GAMMA_API_BASE_URL")
	setFloat(&cfg.Catalog.RPS, "GAMMA_API_RPS")

	setStr(&cfg.Ledger.BaseURL, "DATA_API_BASE_URL")
	setFloat(&cfg.Ledger.RPS, "DATA_API_RPS")
	if v := getEnv("DATA_API_AUTH_MODE"); v != "" {
		cfg.Ledger.AuthMode = AuthMode(v)
	}
	if v := getEnv("DATA_API_EXTRA_HEADERS"); v != "" {
		headers := map[string]string{}
		if err := json.Unmarshal([]byte(v), &headers); err != nil {
			return fmt.Errorf("invalid %sDATA_API_EXTRA_HEADERS JSON: %w", envPrefix, err)
		}
		cfg.Ledger.ExtraHeaders = headers
	}

	setBool(&cfg.Cache.Enabled, "CACHE_ENABLED")
	setStr(&cfg.Cache.Backend, "CACHE_BACKEND")
	setStr(&cfg.Cache.Directory, "CACHE_DIR")
	setStr(&cfg.Cache.RedisAddr, "CACHE_REDIS_ADDR")
	setInt(&cfg.Cache.RedisDB, "CACHE_REDIS_DB")
	setDuration(&cfg.Cache.CatalogTTL, "TTL_GAMMA")
	setDuration(&cfg.Cache.LedgerTTL, "TTL_DATA")
	setStr(&cfg.Cache.PruneSchedule, "CACHE_PRUNE_SCHEDULE")

	setFloat(&cfg.Analysis.MinProfit, "MIN_PROFIT")
	setInt(&cfg.Analysis.HoldersLimit, "HOLDERS_LIMIT")
	setFloat(&cfg.Analysis.MinBalance, "MIN_BALANCE")
	setInt(&cfg.Analysis.MaxClosedPositions, "MAX_CLOSED")
	setInt(&cfg.Analysis.ClosedPageSize, "CLOSED_PAGE_SIZE")
	setFloat(&cfg.Analysis.ConsensusThreshold, "CONSENSUS_THRESHOLD")
	setFloat(&cfg.Analysis.WhaleThreshold, "WHALE_THRESHOLD")
	setInt(&cfg.Analysis.MinQualifiedWallets, "MIN_QUALIFIED_WALLETS")
	setInt(&cfg.Analysis.Concurrency, "CONCURRENCY")
	setDuration(&cfg.Analysis.PerCallTimeout, "TIMEOUT")

	setInt(&cfg.Server.Port, "PORT")
	if v := getEnv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = parseCSV(v)
	}

	setStr(&cfg.Alerts.Mode, "ALERT_MODE")

	// Secrets support the _FILE variant.
	if err := secrets.Override(&cfg.Ledger.BearerToken, envPrefix+"DATA_API_BEARER_TOKEN"); err != nil {
		return err
	}
	if err := secrets.Override(&cfg.Ledger.APIKey, envPrefix+"DATA_API_API_KEY"); err != nil {
		return err
	}
	if err := secrets.Override(&cfg.Cache.MySQLDSN, envPrefix+"CACHE_MYSQL_DSN"); err != nil {
		return err
	}
	if err := secrets.Override(&cfg.Cache.RedisPassword, envPrefix+"CACHE_REDIS_PASSWORD"); err != nil {
		return err
	}
	if hooks := secrets.Optional(envPrefix+"DISCORD_WEBHOOK_URLS", ""); hooks != "" {
		cfg.Alerts.DiscordWebhookURLs = parseCSV(hooks)
	}

	return nil
}

func getEnv(key string) string {
	return os.Getenv(envPrefix + key)
}

func setStr(dst *string, key string) {
	if v := getEnv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := getEnv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := getEnv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := getEnv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// setDuration accepts Go durations ("5m") or bare seconds ("300").
func setDuration(dst *time.Duration, key string) {
	v := getEnv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
	}
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
