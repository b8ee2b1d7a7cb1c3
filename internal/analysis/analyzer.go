// Package analysis resolves a market reference, runs the holders of each
// selected market through enrichment and turns the result into a
// recommendation.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/aggregate"
	"github.com/liamashdown/polysignal/internal/enrich"
	"github.com/liamashdown/polysignal/internal/market"
	"github.com/liamashdown/polysignal/internal/marketref"
	"github.com/liamashdown/polysignal/internal/metrics"
	"github.com/liamashdown/polysignal/internal/polymarket/fetch"
	"github.com/liamashdown/polysignal/internal/polymarket/gammaapi"
)

// Catalog is the subset of the Gamma API an analysis reads
type Catalog interface {
	MarketBySlug(ctx context.Context, slug string) (*gammaapi.Market, error)
	MarketByConditionID(ctx context.Context, conditionID string) (*gammaapi.Market, error)
	EventBySlug(ctx context.Context, slug string) (*gammaapi.Event, error)
}

// Ledger is the subset of the Data API an analysis reads
type Ledger interface {
	enrich.Ledger
	Holders(ctx context.Context, conditionID string, limit int, minBalance float64) ([]string, error)
}

// Analyzer runs analyses against one catalog and ledger
type Analyzer struct {
	catalog Catalog
	ledger  Ledger
	log     *logrus.Logger
	now     func() time.Time
}

// New creates an Analyzer
func New(catalog Catalog, ledger Ledger, log *logrus.Logger) *Analyzer {
	return &Analyzer{
		catalog: catalog,
		ledger:  ledger,
		log:     log,
		now:     time.Now,
	}
}

// AnalyzeMarket resolves reference and analyzes the market(s) it names.
//
// A market reference yields a KindMarket result. An event with several
// markets yields a KindSelection result unless opts.MarketIndex or
// opts.AllMarkets picks what to analyze. Category references are looked up
// as events.
func (a *Analyzer) AnalyzeMarket(ctx context.Context, reference string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ref, err := marketref.Parse(reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if ref.Identifier == "" {
		return nil, fmt.Errorf("%w: %q has no identifier", ErrInvalidReference, reference)
	}

	res := &Result{ID: uuid.New().String(), Reference: ref}
	log := a.log.WithFields(logrus.Fields{
		"analysis_id": res.ID,
		"reference":   ref.String(),
	})

	if ref.Kind == marketref.KindMarket {
		listing, err := a.catalog.MarketBySlug(ctx, ref.Identifier)
		if err == nil && listing == nil {
			err = fetch.ErrNotFound
		}
		if err != nil {
			return nil, lookupError("market", ref.Identifier, err)
		}
		analysis, err := a.analyzeOne(ctx, *listing, opts, log)
		if err != nil {
			return nil, err
		}
		res.Kind = KindMarket
		res.Market = analysis
		return res, nil
	}

	event, err := a.catalog.EventBySlug(ctx, ref.Identifier)
	if err == nil && event == nil {
		err = fetch.ErrNotFound
	}
	if err != nil {
		return nil, lookupError("event", ref.Identifier, err)
	}
	res.Event = &EventInfo{
		ID:    string(event.ID),
		Slug:  string(event.Slug),
		Title: string(event.Title),
	}

	markets := event.Markets
	switch {
	case len(markets) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNoMarketsInEvent, ref.Identifier)

	case opts.AllMarkets:
		log.WithField("markets", len(markets)).Info("Analyzing every market in event")
		res.Kind = KindAllMarkets
		res.Results = make([]MarketAnalysis, 0, len(markets))
		for _, m := range markets {
			analysis, err := a.analyzeOne(ctx, m, opts, log)
			if err != nil {
				return nil, err
			}
			res.Results = append(res.Results, *analysis)
		}
		return res, nil

	case len(markets) > 1 && opts.MarketIndex == nil:
		res.Kind = KindSelection
		res.Choices = make([]MarketChoice, len(markets))
		for i, m := range markets {
			res.Choices[i] = MarketChoice{
				Index:    i,
				Question: string(m.Question),
				Slug:     string(m.Slug),
			}
		}
		return res, nil
	}

	idx := 0
	if opts.MarketIndex != nil {
		idx = *opts.MarketIndex
	}
	if idx < 0 || idx >= len(markets) {
		return nil, fmt.Errorf("%w: %d (0..%d)", ErrIndexOutOfRange, idx, len(markets)-1)
	}

	analysis, err := a.analyzeOne(ctx, markets[idx], opts, log)
	if err != nil {
		return nil, err
	}
	res.Kind = KindMarket
	res.Market = analysis
	return res, nil
}

func lookupError(what, identifier string, err error) error {
	if errors.Is(err, fetch.ErrNotFound) {
		return fmt.Errorf("%w: %s %q", ErrNotFound, what, identifier)
	}
	return fmt.Errorf("lookup %s %q: %w", what, identifier, err)
}

// analyzeOne runs the full flow for one market: resolve, gate, discover
// holders, enrich and aggregate. Gated markets never reach holder discovery.
func (a *Analyzer) analyzeOne(ctx context.Context, listing gammaapi.Market, opts Options, log *logrus.Entry) (*MarketAnalysis, error) {
	start := time.Now()

	listing = a.resolvePartial(ctx, listing, log)
	conditionID := string(listing.ConditionID)
	if conditionID == "" {
		out := gated(market.NewSnapshot(listing, nil), GateMissingConditionID, GateMissingConditionID)
		metrics.RecordAnalysis(GateMissingConditionID, time.Since(start))
		return out, nil
	}

	detail, err := a.catalog.MarketByConditionID(ctx, conditionID)
	if err != nil {
		if !errors.Is(err, fetch.ErrNotFound) {
			return nil, fmt.Errorf("lookup market detail %s: %w", conditionID, err)
		}
		detail = nil
	}
	snap := market.NewSnapshot(listing, detail)

	if gate := market.Gate(snap, a.now()); gate != "" {
		why := gate
		if gate == market.GateExpired && snap.EndTime != nil {
			why = fmt.Sprintf("%s (ended %s)", gate, snap.EndTime.UTC().Format(time.RFC3339))
		}
		out := gated(snap, gate, why)
		out.Diagnostics.ConditionID = conditionID
		log.WithFields(logrus.Fields{
			"condition_id": conditionID,
			"gate":         gate,
		}).Info("Market gated before holder discovery")
		metrics.RecordAnalysis(gate, time.Since(start))
		return out, nil
	}

	wallets, err := a.ledger.Holders(ctx, conditionID, opts.HoldersLimit, opts.MinBalance)
	if err != nil {
		return nil, fmt.Errorf("holders of %s: %w", conditionID, err)
	}

	pipeline := enrich.NewPipeline(a.ledger, opts.pipeline(), a.log)
	rows, drops := pipeline.Run(ctx, conditionID, wallets)
	if len(wallets) == 0 {
		drops[enrich.DropNoHolders]++
	}

	agg := aggregate.Aggregate(rows, opts.thresholds())
	out := &MarketAnalysis{
		Market:            snap,
		Recommendation:    agg.Decision.Recommendation,
		Confidence:        agg.Confidence,
		WalletsQualified:  len(rows),
		WalletsConsidered: len(wallets),
		Distribution:      agg.Distribution,
		Rows:              rows,
		Diagnostics: Diagnostics{
			Gate:            agg.Decision.Gate,
			GateDetail:      agg.Decision.GateDetail,
			TopOutcome:      agg.Decision.TopOutcome,
			TopOutcomeShare: agg.Decision.TopOutcomeShare,
			TopWalletShare:  agg.Decision.TopWalletShare,
			DropReasons:     drops,
			ConditionID:     conditionID,
			HoldersLimit:    opts.HoldersLimit,
			HoldersFound:    len(wallets),
			SampleSize:      summarizeSamples(rows),
		},
	}

	log.WithFields(logrus.Fields{
		"condition_id":   conditionID,
		"holders_found":  len(wallets),
		"qualified":      len(rows),
		"dropped":        drops.Total(),
		"recommendation": out.Recommendation,
		"confidence":     out.Confidence,
		"gate":           out.Diagnostics.Gate,
		"duration":       time.Since(start).Round(time.Millisecond),
	}).Info("Market analyzed")
	metrics.RecordAnalysis(out.Diagnostics.Gate, time.Since(start))
	return out, nil
}

// resolvePartial fills in an event-attached market that lacks a condition id
// from the full market fetched by slug. Fields of the partial market win. Any
// lookup failure leaves the partial market as is.
func (a *Analyzer) resolvePartial(ctx context.Context, m gammaapi.Market, log *logrus.Entry) gammaapi.Market {
	if m.ConditionID != "" || m.Slug == "" {
		return m
	}
	full, err := a.catalog.MarketBySlug(ctx, string(m.Slug))
	if err == nil && full == nil {
		err = fetch.ErrNotFound
	}
	if err != nil {
		log.WithError(err).WithField("slug", string(m.Slug)).Debug("Could not resolve partial market")
		return m
	}
	merged, err := m.MergeOver(*full)
	if err != nil {
		log.WithError(err).WithField("slug", string(m.Slug)).Debug("Could not merge partial market")
		return m
	}
	return merged
}

func gated(snap market.Snapshot, gate, detail string) *MarketAnalysis {
	return &MarketAnalysis{
		Market:         snap,
		Recommendation: aggregate.StayOut,
		Distribution:   aggregate.Distribution{},
		Rows:           []enrich.Row{},
		Diagnostics: Diagnostics{
			Gate:        gate,
			GateDetail:  detail,
			DropReasons: enrich.DropReasons{},
		},
	}
}
