package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/polysignal/internal/analysis"
	"github.com/liamashdown/polysignal/internal/config"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newRemote serves both the catalog and the ledger endpoints for one open
// market held by three wallets.
func newRemote(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	handle := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(hits, 1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		})
	}

	handle("/markets/slug/open", `{"conditionId":"0xcond","slug":"open","question":"Will it happen?"}`)
	handle("/markets", `[{"conditionId":"0xcond","outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"0.7\",\"0.3\"]","active":true,"closed":false,"endDate":"2099-01-01T00:00:00Z"}]`)
	handle("/holders", `[{"token":"1","holders":[
		{"proxyWallet":"0x1111111111111111111111111111111111111111"},
		{"proxyWallet":"0x2222222222222222222222222222222222222222"},
		{"proxyWallet":"0x3333333333333333333333333333333333333333"}
	]}]`)
	handle("/v1/leaderboard", `[{"pnl":"9000"}]`)
	handle("/positions", `[{"outcome":"Yes","currentValue":500}]`)
	handle("/closed-positions", `[]`)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newRunner(t *testing.T, srv *httptest.Server) (*Runner, analysis.Options) {
	cfg := config.Defaults()
	cfg.Catalog.BaseURL = srv.URL
	cfg.Ledger.BaseURL = srv.URL
	cfg.Cache.Directory = t.TempDir()

	opts := analysis.OptionsFromConfig(&cfg)
	opts.MinQualifiedWallets = 3
	opts.PerCallTimeout = 5 * time.Second
	return NewRunner(&cfg, nil, quietLogger()), opts
}

func TestAnalyzeUsesCacheAcrossRuns(t *testing.T) {
	var hits int32
	runner, opts := newRunner(t, newRemote(t, &hits))

	first, err := runner.Analyze(context.Background(), "open", opts)
	require.NoError(t, err)
	require.NotNil(t, first.Market)
	assert.Equal(t, "BUY Yes", first.Market.Recommendation)
	assert.Equal(t, 3, first.Market.WalletsQualified)

	require.NotNil(t, first.RequestStats)
	assert.Equal(t, 12, first.RequestStats.HTTPRequests)
	assert.Equal(t, 12, first.RequestStats.CacheMisses)
	assert.Zero(t, first.RequestStats.CacheHits)
	assert.Equal(t, int32(12), atomic.LoadInt32(&hits))

	second, err := runner.Analyze(context.Background(), "open", opts)
	require.NoError(t, err)
	assert.Equal(t, first.Market.Recommendation, second.Market.Recommendation)
	assert.Zero(t, second.RequestStats.HTTPRequests)
	assert.Equal(t, 12, second.RequestStats.CacheHits)
	assert.Equal(t, int32(12), atomic.LoadInt32(&hits))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAnalyzeClearCache(t *testing.T) {
	var hits int32
	runner, opts := newRunner(t, newRemote(t, &hits))

	_, err := runner.Analyze(context.Background(), "open", opts)
	require.NoError(t, err)

	opts.ClearCache = true
	res, err := runner.Analyze(context.Background(), "open", opts)
	require.NoError(t, err)
	assert.Equal(t, 12, res.RequestStats.HTTPRequests)
	assert.Equal(t, int32(24), atomic.LoadInt32(&hits))
}

func TestAnalyzeWithoutCache(t *testing.T) {
	var hits int32
	runner, opts := newRunner(t, newRemote(t, &hits))
	opts.UseCache = false

	for i := 0; i < 2; i++ {
		res, err := runner.Analyze(context.Background(), "open", opts)
		require.NoError(t, err)
		assert.Equal(t, 12, res.RequestStats.HTTPRequests)
		assert.Zero(t, res.RequestStats.CacheHits)
		assert.Zero(t, res.RequestStats.CacheMisses)
	}
	assert.Equal(t, int32(24), atomic.LoadInt32(&hits))
}

func TestAnalyzeRejectsBadOptions(t *testing.T) {
	var hits int32
	runner, opts := newRunner(t, newRemote(t, &hits))
	opts.Concurrency = 0

	_, err := runner.Analyze(context.Background(), "open", opts)
	assert.ErrorIs(t, err, analysis.ErrInvalidOptions)
	assert.Zero(t, atomic.LoadInt32(&hits))
}
