// Package render formats analysis results as plain text for the terminal and
// for the text format of the HTTP API.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/liamashdown/polysignal/internal/analysis"
	"github.com/liamashdown/polysignal/internal/enrich"
	"github.com/liamashdown/polysignal/internal/polymarket/fetch"
)

// Dash marks a value that is unknown
const Dash = "—"

// PnLLegend explains the tags of the PnL column
const PnLLegend = "PnL tags: [LB]=leaderboard all-time, [REC]=sum of scanned closes, —=unknown"

const maxWalletRows = 10

// Options tunes the output
type Options struct {
	Debug bool
	// SelectionHint is printed under an event's market list, e.g. how to pass
	// the market index on this surface.
	SelectionHint string
}

// Text renders res
func Text(res *analysis.Result, opts Options) string {
	var b strings.Builder
	switch res.Kind {
	case analysis.KindSelection:
		writeSelection(&b, res, opts)
	case analysis.KindAllMarkets:
		writeAllMarkets(&b, res, opts)
	default:
		if res.Market != nil {
			writeMarket(&b, res.Market, opts)
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Write renders res to w
func Write(w io.Writer, res *analysis.Result, opts Options) error {
	_, err := io.WriteString(w, Text(res, opts))
	return err
}

func writeSelection(b *strings.Builder, res *analysis.Result, opts Options) {
	if res.Event != nil {
		fmt.Fprintf(b, "EVENT: %s\n", res.Event.Title)
		fmt.Fprintf(b, "slug=%s id=%s\n\n", res.Event.Slug, res.Event.ID)
	}
	b.WriteString("Markets in this event (pick one):\n")
	for _, m := range res.Choices {
		fmt.Fprintf(b, "  [%d] %s  (slug: %s)\n", m.Index, m.Question, m.Slug)
	}
	if opts.SelectionHint != "" {
		fmt.Fprintf(b, "\n%s\n", opts.SelectionHint)
	}
}

func writeAllMarkets(b *strings.Builder, res *analysis.Result, opts Options) {
	if res.Event != nil {
		fmt.Fprintf(b, "EVENT (ALL MARKETS): %s  slug=%s\n\n", res.Event.Title, res.Event.Slug)
	}
	for i := range res.Results {
		fmt.Fprintf(b, "=== Market #%d ===\n", i)
		writeMarket(b, &res.Results[i], opts)
		b.WriteString("\n")
	}
}

func writeMarket(b *strings.Builder, m *analysis.MarketAnalysis, opts Options) {
	snap := m.Market
	fmt.Fprintf(b, "Market: %s\n", snap.Question)
	fmt.Fprintf(b, "slug=%s conditionId=%s\n\n", snap.Slug, snap.ConditionID)

	if len(snap.Outcomes) > 0 && len(snap.Outcomes) == len(snap.ImpliedProbabilities) {
		pairs := make([]string, len(snap.Outcomes))
		for i, o := range snap.Outcomes {
			pairs[i] = fmt.Sprintf("%s: %.2f", o, snap.ImpliedProbabilities[i])
		}
		fmt.Fprintf(b, "Market implied: %s\n\n", strings.Join(pairs, " | "))
	}

	fmt.Fprintf(b, "Recommendation: %s (confidence %.1f/10)\n", m.Recommendation, m.Confidence)
	fmt.Fprintf(b, "Qualified wallets: %d / holders scanned: %d\n", m.WalletsQualified, m.WalletsConsidered)

	d := m.Diagnostics
	if d.Gate != "" {
		detail := d.GateDetail
		if detail == "" {
			detail = d.Gate
		}
		fmt.Fprintf(b, "Gate triggered: %s\n", detail)
	}
	fmt.Fprintf(b, "Top wallet share: %s\n", percent(d.TopWalletShare))
	if d.TopOutcome != "" {
		fmt.Fprintf(b, "Top outcome: %s (%s weight share)\n", d.TopOutcome, percent(d.TopOutcomeShare))
	}
	if s := d.SampleSize; s != nil {
		fmt.Fprintf(b, "Win-rate sample: median wr_n=%g (min %d, max %d), median closed scanned=%g. Low-sample wallets (<%d): %d\n",
			s.MedianWinRateSamples, s.MinWinRateSamples, s.MaxWinRateSamples,
			s.MedianClosedScanned, s.LowSampleThreshold, s.LowSampleWallets)
	}
	writeDropReasons(b, m, opts)

	b.WriteString("\nSmart-money weighted stance:\n")
	for _, share := range m.Distribution {
		fmt.Fprintf(b, "  %s: %s\n", share.Outcome, percent(share.Share))
	}

	if len(m.Rows) > 0 {
		b.WriteString("\nTop wallets (ranked by weight):\n")
		writeWallets(b, m.Rows, opts)
		fmt.Fprintf(b, "\n%s\n", PnLLegend)
	}
}

// writeDropReasons lists every reason when nothing qualified, and only in
// debug otherwise.
func writeDropReasons(b *strings.Builder, m *analysis.MarketAnalysis, opts Options) {
	drops := m.Diagnostics.DropReasons
	switch {
	case m.WalletsQualified == 0 && len(drops) > 0:
		b.WriteString("Drop reasons (why wallets were filtered out):\n")
		for _, k := range sortedReasons(drops) {
			fmt.Fprintf(b, "  - %s: %d\n", k, drops[k])
		}
	case m.WalletsQualified == 0 && !m.Gated():
		b.WriteString("No drop reasons recorded\n")
	case opts.Debug && len(drops) > 0:
		parts := make([]string, 0, len(drops))
		for _, k := range sortedReasons(drops) {
			parts = append(parts, fmt.Sprintf("%s=%d", k, drops[k]))
		}
		fmt.Fprintf(b, "Drop reasons: %s\n", strings.Join(parts, ", "))
	}
}

// sortedReasons orders by count, most frequent first, then by name
func sortedReasons(drops enrich.DropReasons) []string {
	keys := make([]string, 0, len(drops))
	for k := range drops {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if drops[keys[i]] != drops[keys[j]] {
			return drops[keys[i]] > drops[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func writeWallets(b *strings.Builder, rows []enrich.Row, opts Options) {
	w := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Wallet\tPnL (ALL)\tOutcome\tMktValue\tWin%\tWRn\tClosed\tDays\tConv\tWeight\t")
	for i, r := range rows {
		if i == maxWalletRows {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t\n",
			walletCell(r.Address, opts.Debug),
			PnLCell(r, opts.Debug),
			r.Outcome,
			humanize.FormatFloat("#,###.", r.PositionValue),
			optCell(r.WinRate.Valid, fmt.Sprintf("%.0f%%", r.WinRate.Value*100)),
			r.WinRateSampleSize,
			r.ClosedPositionsScanned,
			optCell(r.DaysSinceLastClose.Valid, fmt.Sprintf("%.0f", r.DaysSinceLastClose.Value)),
			optCell(r.ConvictionRatio.Valid, fmt.Sprintf("%.2f", r.ConvictionRatio.Value)),
			humanize.FormatFloat("#,###.#", r.Weight),
		)
	}
	_ = w.Flush()
}

// PnLCell shows a wallet's profit without overstating it. A leaderboard
// figure is shown as is ([LB] in debug). Otherwise the sum of scanned closes
// is shown tagged [REC], or a dash when there is none.
func PnLCell(r enrich.Row, debug bool) string {
	if r.LifetimeProfitSource == enrich.SourceLeaderboard {
		cell := humanize.FormatFloat("#,###.", r.LifetimeProfit)
		if debug {
			cell += " [LB]"
		}
		return cell
	}
	if r.RecentRealizedPnl.Valid && r.RecentRealizedPnlSampleSize > 0 {
		return humanize.FormatFloat("#,###.", r.RecentRealizedPnl.Value) + " [REC]"
	}
	return Dash
}

func walletCell(addr string, debug bool) string {
	switch {
	case addr == "":
		return Dash
	case debug || len(addr) <= 12:
		return addr
	}
	return addr[:10] + "…"
}

func optCell(valid bool, formatted string) string {
	if !valid {
		return Dash
	}
	return formatted
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// RequestStats renders the per-invocation request counters
func RequestStats(s fetch.StatsSnapshot) string {
	var b strings.Builder
	b.WriteString("Request stats\n")
	fmt.Fprintf(&b, "http_requests=%d cache_hits=%d cache_misses=%d http_time_s=%g elapsed_s=%g\n",
		s.HTTPRequests, s.CacheHits, s.CacheMisses, s.HTTPTimeS, s.ElapsedS)
	hosts := make([]string, 0, len(s.ByHost))
	for h := range s.ByHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		fmt.Fprintf(&b, "- %s: %d\n", h, s.ByHost[h])
	}
	return b.String()
}
