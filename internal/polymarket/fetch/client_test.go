package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/polysignal/internal/cache"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newStore(t *testing.T) cache.Store {
	t.Helper()
	store, err := cache.NewSQLite(filepath.Join(t.TempDir(), "cache.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestClient(store cache.Store, catalogTTL, ledgerTTL time.Duration) *Client {
	return New(Options{
		Catalog:        ServiceOptions{TTL: catalogTTL},
		Ledger:         ServiceOptions{TTL: ledgerTTL, Headers: map[string]string{"X-API-KEY": "k"}},
		Timeout:        2 * time.Second,
		UserAgent:      "polysignal-test",
		Store:          store,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, quietLogger())
}

func TestCacheKeyIgnoresParameterOrder(t *testing.T) {
	a := url.Values{}
	a.Add("user", "0xabc")
	a.Add("limit", "50")
	a.Add("market", "2")
	a.Add("market", "1")

	b := url.Values{}
	b.Add("market", "1")
	b.Add("limit", "50")
	b.Add("market", "2")
	b.Add("user", "0xabc")

	assert.Equal(t, CacheKey("https://x/positions", a), CacheKey("https://x/positions", b))
	assert.Equal(t, "GET:https://x/positions?limit=50&market=1&market=2&user=0xabc", CacheKey("https://x/positions", a))
	assert.Equal(t, "GET:https://x/markets", CacheKey("https://x/markets", nil))
}

func TestGetCachesResponses(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "polysignal-test", r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"conditionId":"0x1"}]`))
	}))
	defer srv.Close()

	c := newTestClient(newStore(t), time.Hour, time.Minute)
	ctx := context.Background()

	req := Request{Service: Catalog, Endpoint: "markets", URL: srv.URL + "/markets", Params: url.Values{"slug": {"a"}, "limit": {"1"}}}
	body, err := c.Get(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"conditionId":"0x1"}]`, string(body))

	reordered := Request{Service: Catalog, Endpoint: "markets", URL: srv.URL + "/markets", Params: url.Values{"limit": {"1"}, "slug": {"a"}}}
	body, err = c.Get(ctx, reordered)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"conditionId":"0x1"}]`, string(body))

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	snap := c.Stats().Snapshot()
	assert.Equal(t, 1, snap.HTTPRequests)
	assert.Equal(t, 1, snap.CacheHits)
	assert.Equal(t, 1, snap.CacheMisses)
	assert.Equal(t, 1, snap.ByHost[hostOf(srv.URL)])
}

func TestGetNonPositiveTTLBypassesCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "k", r.Header.Get("X-API-KEY"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(newStore(t), time.Hour, 0)
	req := Request{Service: Ledger, Endpoint: "holders", URL: srv.URL + "/holders"}
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), req)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	snap := c.Stats().Snapshot()
	assert.Zero(t, snap.CacheHits)
	assert.Zero(t, snap.CacheMisses)
}

func TestGetNotFoundIsCachedWhenAllowed(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(newStore(t), time.Hour, time.Hour)
	req := Request{Service: Catalog, Endpoint: "markets_by_slug", URL: srv.URL + "/markets/slug/nope", Allow404: true}

	_, err := c.Get(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	req.Allow404 = false
	req.URL = srv.URL + "/other"
	_, err = c.Get(context.Background(), req)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestGetRetriesTransientStatuses(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(nil, time.Hour, time.Hour)
	body, err := c.Get(context.Background(), Request{Service: Ledger, Endpoint: "positions", URL: srv.URL})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, 3, c.Stats().Snapshot().HTTPRequests)
}

func TestGetGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(nil, time.Hour, time.Hour)
	_, err := c.Get(context.Background(), Request{Service: Ledger, Endpoint: "positions", URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, int32(DefaultMaxAttempts), atomic.LoadInt32(&hits))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad limit"))
	}))
	defer srv.Close()

	c := newTestClient(nil, time.Hour, time.Hour)
	_, err := c.Get(context.Background(), Request{Service: Catalog, Endpoint: "markets", URL: srv.URL})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransport)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetRetriesConnectionFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	c := newTestClient(nil, time.Hour, time.Hour)
	_, err := c.Get(context.Background(), Request{Service: Catalog, Endpoint: "markets", URL: target})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, DefaultMaxAttempts, c.Stats().Snapshot().HTTPRequests)
}

func TestGetRejectsNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	c := newTestClient(newStore(t), time.Hour, time.Hour)
	_, err := c.Get(context.Background(), Request{Service: Catalog, Endpoint: "markets", URL: srv.URL})
	assert.ErrorIs(t, err, ErrRemoteData)
}
