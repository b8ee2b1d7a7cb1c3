package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/liamashdown/polysignal/internal/aggregate"
	"github.com/liamashdown/polysignal/internal/enrich"
	"github.com/liamashdown/polysignal/internal/market"
	"github.com/liamashdown/polysignal/internal/marketref"
	"github.com/liamashdown/polysignal/internal/polymarket/fetch"
)

// GateMissingConditionID is reported when a market cannot be resolved to a
// condition id, even after looking it up by slug.
const GateMissingConditionID = "missing_condition_id"

// LowSampleThreshold is the win-rate sample size below which a wallet's
// history is considered thin.
const LowSampleThreshold = 10

// Kind tells which of the result shapes is populated
type Kind string

const (
	KindMarket     Kind = "market"
	KindSelection  Kind = "selection"
	KindAllMarkets Kind = "all_markets"
)

// Result is what analyzeMarket returns. Market is set for KindMarket,
// Choices for KindSelection and Results for KindAllMarkets.
type Result struct {
	ID           string               `json:"id"`
	Kind         Kind                 `json:"kind"`
	Reference    marketref.Ref        `json:"reference"`
	Event        *EventInfo           `json:"event,omitempty"`
	Market       *MarketAnalysis      `json:"market,omitempty"`
	Choices      []MarketChoice       `json:"event_markets,omitempty"`
	Results      []MarketAnalysis     `json:"results,omitempty"`
	RequestStats *fetch.StatsSnapshot `json:"request_stats,omitempty"`
}

// EventInfo identifies the event a reference resolved to
type EventInfo struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// MarketChoice is one market of a multi-market event, in catalog order
type MarketChoice struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Slug     string `json:"slug"`
}

// MarketAnalysis is the recommendation for one market
type MarketAnalysis struct {
	Market            market.Snapshot        `json:"market"`
	Recommendation    string                 `json:"recommendation"`
	Confidence        float64                `json:"confidence"`
	WalletsQualified  int                    `json:"n_wallets_qualified"`
	WalletsConsidered int                    `json:"n_wallets_considered"`
	Distribution      aggregate.Distribution `json:"outcome_distribution"`
	Rows              []enrich.Row           `json:"rows"`
	Diagnostics       Diagnostics            `json:"diagnostics"`
}

// Gated reports whether the recommendation was forced by a gate
func (m *MarketAnalysis) Gated() bool {
	return m.Diagnostics.Gate != ""
}

// Diagnostics explains how a recommendation was reached
type Diagnostics struct {
	Gate            string             `json:"gate,omitempty"`
	GateDetail      string             `json:"gate_detail,omitempty"`
	TopOutcome      string             `json:"top_outcome,omitempty"`
	TopOutcomeShare float64            `json:"top_outcome_share"`
	TopWalletShare  float64            `json:"top_wallet_share"`
	DropReasons     enrich.DropReasons `json:"drop_reasons"`
	ConditionID     string             `json:"condition_id,omitempty"`
	HoldersLimit    int                `json:"holders_limit,omitempty"`
	HoldersFound    int                `json:"holders_found"`
	SampleSize      *SampleSize        `json:"sample_size,omitempty"`
}

// SampleSize summarizes how much closed history backs the qualifying wallets
type SampleSize struct {
	MedianWinRateSamples float64 `json:"median_wr_n"`
	MinWinRateSamples    int     `json:"min_wr_n"`
	MaxWinRateSamples    int     `json:"max_wr_n"`
	MedianClosedScanned  float64 `json:"median_closed_scanned"`
	LowSampleThreshold   int     `json:"low_sample_threshold"`
	LowSampleWallets     int     `json:"low_sample_wallets"`
}

// summarizeSamples returns nil when there are no rows
func summarizeSamples(rows []enrich.Row) *SampleSize {
	if len(rows) == 0 {
		return nil
	}

	winRate := make([]float64, 0, len(rows))
	scanned := make([]float64, 0, len(rows))
	s := &SampleSize{LowSampleThreshold: LowSampleThreshold}
	for i, r := range rows {
		winRate = append(winRate, float64(r.WinRateSampleSize))
		scanned = append(scanned, float64(r.ClosedPositionsScanned))
		if i == 0 || r.WinRateSampleSize < s.MinWinRateSamples {
			s.MinWinRateSamples = r.WinRateSampleSize
		}
		if r.WinRateSampleSize > s.MaxWinRateSamples {
			s.MaxWinRateSamples = r.WinRateSampleSize
		}
		if r.WinRateSampleSize < LowSampleThreshold {
			s.LowSampleWallets++
		}
	}
	s.MedianWinRateSamples = median(winRate)
	s.MedianClosedScanned = median(scanned)
	return s
}

func median(values []float64) float64 {
	sort.Float64s(values)
	return stat.Quantile(0.5, stat.Empirical, values, nil)
}
