// Package enrich fetches the trading history of every holder of a market,
// filters out wallets that cannot be evaluated and scores the rest.
package enrich

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/liamashdown/polysignal/internal/metrics"
	"github.com/liamashdown/polysignal/internal/polymarket/dataapi"
	"github.com/liamashdown/polysignal/internal/polymarket/fetch"
	"github.com/liamashdown/polysignal/internal/scoring"
)

// realized P&L at or below this magnitude is rounding noise, not a win or loss
const pnlNoise = 1e-9

// Ledger is the subset of the Data API the pipeline reads
type Ledger interface {
	LeaderboardProfit(ctx context.Context, wallet string) (float64, bool, error)
	Positions(ctx context.Context, wallet, conditionID string, limit int) ([]dataapi.Position, error)
	ClosedPositions(ctx context.Context, wallet string, limit, offset int) ([]dataapi.ClosedPosition, error)
}

// Options tunes the pipeline
type Options struct {
	MinProfit      float64
	MaxClosed      int // closed positions scanned per wallet
	ClosedPageSize int
	Concurrency    int // wallets in flight
	PositionsLimit int
}

// Pipeline enriches the holders of one market
type Pipeline struct {
	ledger Ledger
	opts   Options
	log    *logrus.Logger
	now    func() time.Time
}

// NewPipeline creates a pipeline
func NewPipeline(ledger Ledger, opts Options, log *logrus.Logger) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PositionsLimit <= 0 {
		opts.PositionsLimit = dataapi.DefaultPositionsLimit
	}
	return &Pipeline{
		ledger: ledger,
		opts:   opts,
		log:    log,
		now:    time.Now,
	}
}

type outcome struct {
	row    *Row
	reason string
}

// Run enriches every wallet with at most Concurrency wallets in flight and
// returns the qualifying rows sorted by weight plus a count per drop reason.
// Duplicate addresses are processed once.
func (p *Pipeline) Run(ctx context.Context, conditionID string, wallets []string) ([]Row, DropReasons) {
	wallets = dedupe(wallets)
	results := make([]outcome, len(wallets))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, wallet := range wallets {
		i, wallet := i, wallet
		g.Go(func() error {
			results[i] = p.enrichSafely(ctx, conditionID, wallet)
			return nil
		})
	}
	_ = g.Wait()

	rows := make([]Row, 0, len(results))
	drops := DropReasons{}
	for _, res := range results {
		if res.row != nil {
			rows = append(rows, *res.row)
			metrics.RecordWalletResult("qualified")
			continue
		}
		reason := res.reason
		if reason == "" {
			reason = DropFilteredOut
		}
		drops[reason]++
		metrics.RecordWalletResult(reason)
	}

	SortRows(rows)
	return rows, drops
}

// enrichSafely turns a panic or unexpected error of one wallet into an
// enrich_error drop so sibling wallets are unaffected.
func (p *Pipeline) enrichSafely(ctx context.Context, conditionID, wallet string) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"wallet": shortenAddress(wallet),
				"panic":  fmt.Sprint(r),
			}).Error("Wallet enrichment panicked")
			res = outcome{reason: DropEnrichError}
		}
	}()

	if strings.TrimSpace(wallet) == "" {
		return outcome{reason: DropFilteredOut}
	}

	row, reason, err := p.enrichWallet(ctx, conditionID, wallet)
	if err != nil {
		p.log.WithError(err).WithField("wallet", shortenAddress(wallet)).Warn("Wallet enrichment failed")
		return outcome{reason: DropEnrichError}
	}
	if row == nil {
		p.log.WithFields(logrus.Fields{
			"wallet": shortenAddress(wallet),
			"reason": reason,
		}).Debug("Dropped wallet")
	}
	return outcome{row: row, reason: reason}
}

func (p *Pipeline) enrichWallet(ctx context.Context, conditionID, wallet string) (*Row, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	// 1) lifetime profit
	profit, known, err := p.ledger.LeaderboardProfit(ctx, wallet)
	if err != nil {
		p.log.WithError(err).WithField("wallet", shortenAddress(wallet)).Debug("Leaderboard lookup failed, profit unknown")
		profit, known = 0, false
	}
	if !known {
		if p.opts.MinProfit > 0 {
			return nil, DropPnlUnknown, nil
		}
		profit = 0
	} else if profit < p.opts.MinProfit {
		return nil, DropPnlBelowMinProfit, nil
	}

	// 2) open position in this market
	positions, err := p.ledger.Positions(ctx, wallet, conditionID, p.opts.PositionsLimit)
	if err != nil {
		p.log.WithError(err).WithField("wallet", shortenAddress(wallet)).Debug("Positions lookup failed")
		return nil, DropPositionsError, nil
	}
	if len(positions) == 0 {
		return nil, DropNoPosition, nil
	}
	outcomeName, value := summarizePositions(positions)
	if value <= 0 {
		return nil, DropPositionZeroValue, nil
	}
	if outcomeName == "" {
		return nil, DropNoPosition, nil
	}

	// 3) closed history; a failure leaves the history signals unknown
	closed, err := p.closedHistory(ctx, wallet)
	if err != nil {
		p.log.WithError(err).WithField("wallet", shortenAddress(wallet)).Debug("Closed positions lookup failed")
		closed = nil
	}

	// 4) signals
	h := summarizeHistory(closed, value, p.now())
	source := SourceUnknown
	if known {
		source = SourceLeaderboard
	}

	breakdown := scoring.Explain(scoring.Features{
		LifetimeProfit:     profit,
		WinRate:            h.winRate,
		DaysSinceLastClose: h.daysSinceLastClose,
		ConvictionRatio:    h.conviction,
		PositionOutcome:    outcomeName,
		PositionValue:      value,
	})

	return &Row{
		Address:                     wallet,
		Outcome:                     outcomeName,
		PositionValue:               value,
		WinRate:                     h.winRate,
		WinRateSampleSize:           h.winRateSamples,
		ClosedPositionsScanned:      len(closed),
		DaysSinceLastClose:          h.daysSinceLastClose,
		ConvictionRatio:             h.conviction,
		Weight:                      breakdown.Weight,
		Breakdown:                   breakdown,
		LifetimeProfit:              profit,
		LifetimeProfitKnown:         known,
		LifetimeProfitSource:        source,
		RecentRealizedPnl:           h.recentPnl,
		RecentRealizedPnlSampleSize: h.recentPnlSamples,
	}, "", nil
}

// closedHistory pages through closed positions until MaxClosed rows are
// collected or the remote runs out. Any failed page discards the history.
func (p *Pipeline) closedHistory(ctx context.Context, wallet string) ([]dataapi.ClosedPosition, error) {
	pageSize := dataapi.ClampClosedPageSize(p.opts.ClosedPageSize)

	var out []dataapi.ClosedPosition
	for offset := 0; len(out) < p.opts.MaxClosed; offset += pageSize {
		page, err := p.ledger.ClosedPositions(ctx, wallet, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		if len(page) < pageSize {
			break
		}
	}

	if len(out) > p.opts.MaxClosed {
		out = out[:p.opts.MaxClosed]
	}
	return out, nil
}

// summarizePositions returns the outcome with the largest value (first wins
// on ties) and the total value across all rows.
func summarizePositions(positions []dataapi.Position) (string, float64) {
	var (
		best    string
		bestVal float64
		total   float64
	)
	for _, pos := range positions {
		v := pos.Value()
		total += v
		if v > bestVal {
			bestVal = v
			best = string(pos.Outcome)
		}
	}
	return best, total
}

type history struct {
	winRate            scoring.Opt
	winRateSamples     int
	daysSinceLastClose scoring.Opt
	conviction         scoring.Opt
	recentPnl          scoring.Opt
	recentPnlSamples   int
}

func summarizeHistory(closed []dataapi.ClosedPosition, positionValue float64, now time.Time) history {
	var (
		h        history
		wins     int
		decided  int
		latest   int64
		hasTS    bool
		sizes    []float64
		pnlSum   float64
		pnlCount int
	)

	for _, c := range closed {
		pnl := c.RealizedPnl.Value
		if math.Abs(pnl) > pnlNoise {
			decided++
			if pnl > 0 {
				wins++
			}
		}
		if c.RealizedPnl.Valid {
			pnlSum += pnl
			pnlCount++
		}
		if c.Timestamp.Valid {
			ts := fetch.NormalizeEpoch(int64(c.Timestamp.Value))
			if !hasTS || ts > latest {
				latest, hasTS = ts, true
			}
		}
		if c.TotalBought.Value > 0 {
			sizes = append(sizes, c.TotalBought.Value)
		}
	}

	if decided > 0 {
		h.winRate = scoring.Some(float64(wins) / float64(decided))
		h.winRateSamples = decided
	}
	if hasTS {
		h.daysSinceLastClose = scoring.DaysSince(latest, now)
	}
	if len(sizes) > 0 {
		sort.Float64s(sizes)
		// upper median
		if median := sizes[len(sizes)/2]; median > 0 {
			h.conviction = scoring.Some(positionValue / median)
		}
	}
	if pnlCount > 0 {
		h.recentPnl = scoring.Some(pnlSum)
		h.recentPnlSamples = pnlCount
	}
	return h
}

func dedupe(wallets []string) []string {
	seen := make(map[string]bool, len(wallets))
	out := make([]string, 0, len(wallets))
	for _, w := range wallets {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func shortenAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
