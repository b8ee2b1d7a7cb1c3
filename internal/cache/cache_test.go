package cache

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/polysignal/internal/config"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "cache.db"), quietLogger())
	require.NoError(t, err)
	defer store.Close()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "GET:a", []byte("one"), time.Hour))
	require.NoError(t, store.Set(ctx, "GET:a", []byte("two"), time.Hour))
	value, found, err := store.Get(ctx, "GET:a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("two"), value)

	require.NoError(t, store.Set(ctx, "GET:forever", []byte("x"), 0))
	_, found, err = store.Get(ctx, "GET:forever")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSQLiteStoreExpiryAndPrune(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"), quietLogger())
	require.NoError(t, err)
	defer store.Close()

	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "short", []byte("s"), time.Minute))
	require.NoError(t, store.Set(ctx, "long", []byte("l"), time.Hour))
	require.NoError(t, store.Set(ctx, "never", []byte("n"), 0))

	now = now.Add(2 * time.Minute)

	_, found, err := store.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found, "expired entry must not be served")

	removed, err := store.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, found, err = store.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, store.Clear(ctx))
	_, found, err = store.Get(ctx, "never")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := NewRedis(ctx, RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "GET:a", []byte("one"), time.Minute))
	require.NoError(t, store.Set(ctx, "GET:b", []byte("two"), 0))

	value, found, err := store.Get(ctx, "GET:a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("one"), value)

	mr.FastForward(2 * time.Minute)
	_, found, err = store.Get(ctx, "GET:a")
	require.NoError(t, err)
	assert.False(t, found)

	pruned, err := store.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	require.NoError(t, mr.Set("unrelated", "keep"))
	require.NoError(t, store.Clear(ctx))
	_, found, err = store.Get(ctx, "GET:b")
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, mr.Exists("unrelated"))
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	cfg := config.Defaults().Cache
	store, err := Open(ctx, cfg, t.TempDir(), quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &GormStore{}, store)
	require.NoError(t, store.Close())

	mr := miniredis.RunT(t)
	cfg.Backend = config.CacheBackendRedis
	cfg.RedisAddr = mr.Addr()
	store, err = Open(ctx, cfg, "", quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)
	require.NoError(t, store.Close())

	cfg.Backend = "memcached"
	_, err = Open(ctx, cfg, "", quietLogger())
	assert.Error(t, err)
}
