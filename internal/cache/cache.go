// Package cache is the persistent key/value store behind the fetch client.
// Entries carry their own expiry; expired entries are never returned.
package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/config"
)

// Store is a persistent key/value store with per-entry expiry. Implementations
// must be safe for concurrent use; operations on distinct keys must not block
// each other beyond what the backend does internally.
type Store interface {
	// Get returns the value for key. found is false when the key is absent or
	// its entry has expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key. A non-positive ttl stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Prune removes expired entries and reports how many were removed.
	Prune(ctx context.Context) (int64, error)
	Close() error
}

// Open returns the store selected by cfg.Backend. dir overrides
// cfg.Directory for the sqlite backend when non-empty.
func Open(ctx context.Context, cfg config.CacheConfig, dir string, log *logrus.Logger) (Store, error) {
	switch cfg.Backend {
	case config.CacheBackendSQLite, "":
		if dir == "" {
			dir = cfg.Directory
		}
		return NewSQLite(filepath.Join(dir, "cache.db"), log)
	case config.CacheBackendMySQL:
		return NewMySQL(cfg.MySQLDSN, log)
	case config.CacheBackendRedis:
		return NewRedis(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
