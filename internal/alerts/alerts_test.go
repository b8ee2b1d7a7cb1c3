package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/polysignal/internal/aggregate"
	"github.com/liamashdown/polysignal/internal/analysis"
	"github.com/liamashdown/polysignal/internal/config"
	"github.com/liamashdown/polysignal/internal/enrich"
	"github.com/liamashdown/polysignal/internal/market"
	"github.com/liamashdown/polysignal/internal/marketref"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func buyAnalysis() analysis.MarketAnalysis {
	rows := make([]enrich.Row, 7)
	for i := range rows {
		rows[i] = enrich.Row{Address: "0x1234567890abcdef1234567890abcdef12345678", Outcome: "Yes", Weight: float64(10 - i), PositionValue: 100}
	}
	return analysis.MarketAnalysis{
		Market:            market.Snapshot{ConditionID: "0xc", Question: "Will it rain?", Slug: "rain"},
		Recommendation:    "BUY Yes",
		Confidence:        8,
		WalletsQualified:  7,
		WalletsConsidered: 9,
		Distribution:      aggregate.Distribution{{Outcome: "Yes", Share: 0.9}, {Outcome: "No", Share: 0.1}},
		Rows:              rows,
		Diagnostics:       analysis.Diagnostics{TopOutcome: "Yes", TopOutcomeShare: 0.9, TopWalletShare: 0.2},
	}
}

func gatedAnalysis() analysis.MarketAnalysis {
	return analysis.MarketAnalysis{
		Market:         market.Snapshot{ConditionID: "0xd", Question: "Old market"},
		Recommendation: aggregate.StayOut,
		Diagnostics:    analysis.Diagnostics{Gate: market.GateClosed, GateDetail: market.GateClosed},
	}
}

func TestReports(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	buy := buyAnalysis()

	res := &analysis.Result{
		ID:        "id-1",
		Kind:      analysis.KindMarket,
		Reference: marketref.Ref{Kind: marketref.KindMarket, Identifier: "rain"},
		Market:    &buy,
	}
	reports := Reports(res, "test", now)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Equal(t, SeverityAlert, r.Severity)
	assert.Equal(t, "market:rain", r.Reference)
	assert.Equal(t, "https://polymarket.com/market/rain", r.MarketURL)
	assert.Equal(t, "BUY Yes", r.Recommendation)
	assert.Len(t, r.TopWallets, maxReportWallets)
	assert.Equal(t, "0x1234...5678", r.TopWallets[0].AddressShort)
	assert.Equal(t, now, r.Timestamp)

	all := &analysis.Result{Kind: analysis.KindAllMarkets, Results: []analysis.MarketAnalysis{gatedAnalysis(), buy}}
	reports = Reports(all, "test", now)
	require.Len(t, reports, 2)
	assert.Equal(t, SeverityInfo, reports[0].Severity)
	assert.Empty(t, reports[0].MarketURL)
	assert.Equal(t, SeverityAlert, reports[1].Severity)

	assert.Empty(t, Reports(&analysis.Result{Kind: analysis.KindSelection}, "test", now))
}

func TestDiscordSender(t *testing.T) {
	var got map[string][]map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	buy := buyAnalysis()
	report := Reports(&analysis.Result{Kind: analysis.KindMarket, Market: &buy}, "test", time.Now())[0]

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), report))
	require.Len(t, got["embeds"], 1)
	embed := got["embeds"][0]
	assert.Equal(t, "📈 BUY Yes", embed["title"])
	assert.Equal(t, "https://polymarket.com/market/rain", embed["url"])
	assert.Equal(t, float64(0x2ECC71), embed["color"])
	assert.Len(t, embed["fields"], 4)
}

func TestDiscordSenderRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	gated := gatedAnalysis()
	report := Reports(&analysis.Result{Kind: analysis.KindMarket, Market: &gated}, "test", time.Now())[0]

	err := NewDiscordSender(srv.URL).Send(context.Background(), report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}

type recordingSender struct {
	sent []*Report
	err  error
}

func (s *recordingSender) Send(_ context.Context, r *Report) error {
	s.sent = append(s.sent, r)
	return s.err
}

func TestMultiSenderSendsToAll(t *testing.T) {
	ok := &recordingSender{}
	failing := &recordingSender{err: errors.New("down")}

	err := NewMultiSender(failing, ok).Send(context.Background(), &Report{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sender 0")
	assert.Len(t, ok.sent, 1)
	assert.Len(t, failing.sent, 1)
}

func TestNotify(t *testing.T) {
	rec := &recordingSender{}
	all := &analysis.Result{Kind: analysis.KindAllMarkets, Results: []analysis.MarketAnalysis{gatedAnalysis(), buyAnalysis()}}

	require.NoError(t, Notify(context.Background(), rec, all, "test"))
	assert.Len(t, rec.sent, 2)
	assert.NoError(t, Notify(context.Background(), nil, all, "test"))
}

func TestNewSender(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		webhooks []string
		want     interface{}
	}{
		{"none", "none", nil, nil},
		{"log", "log", nil, &LogSender{}},
		{"single discord", "discord", []string{"http://a"}, &DiscordSender{}},
		{"discord without webhooks", "discord", nil, nil},
		{"log and discord", "log, discord", []string{"http://a", "http://b"}, &MultiSender{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Alerts.Mode = tt.mode
			cfg.Alerts.DiscordWebhookURLs = tt.webhooks

			got := NewSender(&cfg, quietLogger())
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.IsType(t, tt.want, got)
		})
	}
}
