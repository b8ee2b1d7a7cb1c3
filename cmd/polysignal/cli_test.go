package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/polysignal/internal/config"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
		ref     string
		wantErr bool
	}{
		{"bare reference", []string{"https://polymarket.com/event/x"}, commandAnalyze, "https://polymarket.com/event/x", false},
		{"analyze prefix", []string{"analyze", "market:x"}, commandAnalyze, "market:x", false},
		{"analyze uppercase", []string{"ANALYZE", "market:x"}, commandAnalyze, "market:x", false},
		{"flags after reference", []string{"analyze", "x", "--debug", "--json"}, commandAnalyze, "x", false},
		{"doctor", []string{"doctor"}, commandDoctor, "", false},
		{"missing reference", []string{"--debug"}, "", "", true},
		{"analyze without reference", []string{"analyze"}, "", "", true},
		{"two references", []string{"a", "b"}, "", "", true},
		{"negative market index", []string{"x", "--market-index", "-1"}, "", "", true},
		{"unknown flag", []string{"x", "--nope"}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := parseArgs(tt.args, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.command, inv.command)
			assert.Equal(t, tt.ref, inv.reference)
		})
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	inv, err := parseArgs([]string{
		"--min-profit", "100", "x", "--holders-limit", "10", "--market-index", "2",
		"--all", "--no-cache", "--clear-cache", "--ttl-gamma", "1m", "--consensus-threshold", "0.7",
	}, io.Discard)
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Analysis.Concurrency = 3
	opts := inv.options(&cfg)

	assert.Equal(t, 100.0, opts.MinProfit)
	assert.Equal(t, 10, opts.HoldersLimit)
	require.NotNil(t, opts.MarketIndex)
	assert.Equal(t, 2, *opts.MarketIndex)
	assert.True(t, opts.AllMarkets)
	assert.False(t, opts.UseCache)
	assert.True(t, opts.ClearCache)
	assert.Equal(t, time.Minute, opts.CatalogTTL)
	assert.Equal(t, 0.7, opts.ConsensusThreshold)

	// untouched flags keep the configured value
	assert.Equal(t, 3, opts.Concurrency)
	assert.Equal(t, cfg.Cache.LedgerTTL, opts.LedgerTTL)
	assert.Nil(t, func() *int {
		inv, _ := parseArgs([]string{"x"}, io.Discard)
		return inv.options(&cfg).MarketIndex
	}())
}

func newRemote(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	handle := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
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

func TestRunAnalyze(t *testing.T) {
	srv := newRemote(t)
	t.Setenv("POLYSIGNAL_GAMMA_API_BASE_URL", srv.URL)
	t.Setenv("POLYSIGNAL_DATA_API_BASE_URL", srv.URL)
	cacheDir := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"open", "--min-qualified-wallets", "3", "--cache-dir", cacheDir}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Market: Will it happen?")
	assert.Contains(t, out, "Recommendation: BUY Yes (confidence 10.0/10)")
	assert.Contains(t, out, "0x11111111…")
	assert.Contains(t, out, "9,000")

	stdout.Reset()
	code = run(context.Background(), []string{"analyze", "open", "--json", "--min-qualified-wallets", "3", "--cache-dir", cacheDir}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.Equal(t, "market", res["kind"])
	stats := res["request_stats"].(map[string]interface{})
	assert.Equal(t, float64(0), stats["http_requests"])
}

func TestRunReportsRejectedReference(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	t.Setenv("POLYSIGNAL_GAMMA_API_BASE_URL", srv.URL)
	t.Setenv("POLYSIGNAL_DATA_API_BASE_URL", srv.URL)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"market:missing", "--no-cache"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error: not found")
	assert.Empty(t, stdout.String())
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Missing URL")
	assert.Equal(t, 0, run(context.Background(), []string{"-h"}, &stdout, &stderr))
}

func TestRunDoctor(t *testing.T) {
	var stdout, stderr bytes.Buffer
	dir := t.TempDir()
	require.Equal(t, 0, run(context.Background(), []string{"doctor", "--cache-dir", dir}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Polysignal doctor")
	assert.Contains(t, stdout.String(), dir)
}
