// Package alerts delivers recommendation reports to operators.
package alerts

import (
	"context"
	"time"

	"github.com/liamashdown/polysignal/internal/aggregate"
	"github.com/liamashdown/polysignal/internal/analysis"
)

// Severity represents report severity
type Severity string

const (
	SeverityInfo  Severity = "INFO"  // gated, STAY OUT
	SeverityAlert Severity = "ALERT" // actionable BUY
)

// maxReportWallets caps the wallets listed in a report
const maxReportWallets = 5

// WalletLine is one top wallet in a report
type WalletLine struct {
	AddressShort  string
	Outcome       string
	Weight        float64
	PositionValue float64
}

// Report contains everything a sender shows about one market analysis
type Report struct {
	Severity          Severity
	AnalysisID        string
	Reference         string
	MarketQuestion    string
	MarketURL         string
	ConditionID       string
	Recommendation    string
	Confidence        float64
	Gate              string
	GateDetail        string
	TopOutcome        string
	TopOutcomeShare   float64
	TopWalletShare    float64
	WalletsQualified  int
	WalletsConsidered int
	Distribution      aggregate.Distribution
	TopWallets        []WalletLine
	Timestamp         time.Time
	Environment       string
}

// Sender defines the interface for report senders
type Sender interface {
	Send(ctx context.Context, report *Report) error
}

// Reports builds one report per analyzed market. Selection results have
// nothing to report.
func Reports(res *analysis.Result, environment string, now time.Time) []*Report {
	var markets []analysis.MarketAnalysis
	switch res.Kind {
	case analysis.KindMarket:
		if res.Market != nil {
			markets = append(markets, *res.Market)
		}
	case analysis.KindAllMarkets:
		markets = res.Results
	}

	reports := make([]*Report, 0, len(markets))
	for _, m := range markets {
		r := &Report{
			Severity:          SeverityInfo,
			AnalysisID:        res.ID,
			Reference:         res.Reference.String(),
			MarketQuestion:    m.Market.Question,
			ConditionID:       m.Market.ConditionID,
			Recommendation:    m.Recommendation,
			Confidence:        m.Confidence,
			Gate:              m.Diagnostics.Gate,
			GateDetail:        m.Diagnostics.GateDetail,
			TopOutcome:        m.Diagnostics.TopOutcome,
			TopOutcomeShare:   m.Diagnostics.TopOutcomeShare,
			TopWalletShare:    m.Diagnostics.TopWalletShare,
			WalletsQualified:  m.WalletsQualified,
			WalletsConsidered: m.WalletsConsidered,
			Distribution:      m.Distribution,
			Timestamp:         now,
			Environment:       environment,
		}
		if m.Market.Slug != "" {
			r.MarketURL = "https://polymarket.com/market/" + m.Market.Slug
		}
		if !m.Gated() {
			r.Severity = SeverityAlert
		}
		for i, row := range m.Rows {
			if i == maxReportWallets {
				break
			}
			r.TopWallets = append(r.TopWallets, WalletLine{
				AddressShort:  shortenAddress(row.Address),
				Outcome:       row.Outcome,
				Weight:        row.Weight,
				PositionValue: row.PositionValue,
			})
		}
		reports = append(reports, r)
	}
	return reports
}

// Notify sends every report of res. Failures are collected, not fatal to
// later reports.
func Notify(ctx context.Context, sender Sender, res *analysis.Result, environment string) error {
	if sender == nil || res == nil {
		return nil
	}
	var errs []error
	for _, r := range Reports(res, environment, time.Now()) {
		if err := sender.Send(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func shortenAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
