// Package aggregate combines scored wallets into an outcome distribution and
// a recommendation.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/liamashdown/polysignal/internal/enrich"
)

// StayOut is the recommendation whenever a gate fires
const StayOut = "STAY OUT"

// Gate names, in evaluation order
const (
	GateNoQualifiedWallets = "no_qualified_wallets"
	GateMinQualified       = "min_qualified_wallets_not_met"
	GateWhaleDominance     = "whale_dominance"
	GateNoConsensus        = "no_consensus"
)

// MaxConfidence is the confidence of a unanimous distribution
const MaxConfidence = 10.0

// Share is the fraction of total weight backing one outcome
type Share struct {
	Outcome string  `json:"outcome"`
	Share   float64 `json:"share"`
}

// Distribution is ordered by descending share
type Distribution []Share

// Thresholds are the gate settings
type Thresholds struct {
	Consensus           float64
	Whale               float64
	MinQualifiedWallets int
}

// Decision is the outcome of gating a distribution
type Decision struct {
	Recommendation  string  `json:"recommendation"`
	Gate            string  `json:"gate,omitempty"`
	GateDetail      string  `json:"gate_detail,omitempty"`
	TopOutcome      string  `json:"top_outcome"`
	TopOutcomeShare float64 `json:"top_outcome_share"`
	TopWalletShare  float64 `json:"top_wallet_share"`
}

// Result bundles everything aggregation produces
type Result struct {
	Distribution Distribution
	Confidence   float64
	Decision     Decision
}

// Aggregate builds the distribution, its confidence and the decision
func Aggregate(rows []enrich.Row, th Thresholds) Result {
	dist := BuildDistribution(rows)
	return Result{
		Distribution: dist,
		Confidence:   Confidence(dist),
		Decision:     Decide(rows, dist, th),
	}
}

// BuildDistribution sums row weights per outcome and normalizes the sums.
// Rows with no weight or no outcome add nothing. Equal shares keep the order
// in which their outcome first appeared in rows.
func BuildDistribution(rows []enrich.Row) Distribution {
	var (
		order []string
		sums  = map[string]float64{}
		total float64
	)
	for _, r := range rows {
		if r.Weight <= 0 || r.Outcome == "" {
			continue
		}
		if _, seen := sums[r.Outcome]; !seen {
			order = append(order, r.Outcome)
		}
		sums[r.Outcome] += r.Weight
		total += r.Weight
	}
	if total <= 0 {
		return Distribution{}
	}

	dist := make(Distribution, 0, len(order))
	for _, outcome := range order {
		dist = append(dist, Share{Outcome: outcome, Share: sums[outcome] / total})
	}
	sort.SliceStable(dist, func(i, j int) bool {
		return dist[i].Share > dist[j].Share
	})
	return dist
}

// Confidence is 10 times the margin between the two leading outcomes, 10 for
// a single outcome and 0 for an empty distribution.
func Confidence(dist Distribution) float64 {
	switch len(dist) {
	case 0:
		return 0
	case 1:
		return MaxConfidence
	}
	margin := math.Max(0, dist[0].Share-dist[1].Share)
	return math.Max(0, math.Min(MaxConfidence, MaxConfidence*margin))
}

// TopWalletShare is the largest single wallet weight over the total weight
func TopWalletShare(rows []enrich.Row) float64 {
	var total, top float64
	for _, r := range rows {
		w := math.Max(0, r.Weight)
		total += w
		top = math.Max(top, w)
	}
	if total <= 0 {
		return 0
	}
	return top / total
}

// Decide applies the gates in order; the first that fires wins. Without a
// gate the recommendation is to buy the top outcome.
func Decide(rows []enrich.Row, dist Distribution, th Thresholds) Decision {
	d := Decision{Recommendation: StayOut, TopWalletShare: TopWalletShare(rows)}
	if len(dist) > 0 {
		d.TopOutcome = dist[0].Outcome
		d.TopOutcomeShare = dist[0].Share
	}

	switch {
	case len(dist) == 0 || len(rows) == 0:
		d.Gate = GateNoQualifiedWallets
		d.GateDetail = GateNoQualifiedWallets
	case len(rows) < th.MinQualifiedWallets:
		d.Gate = GateMinQualified
		d.GateDetail = fmt.Sprintf("%s (%d < %d)", GateMinQualified, len(rows), th.MinQualifiedWallets)
	case d.TopWalletShare >= th.Whale:
		d.Gate = GateWhaleDominance
		d.GateDetail = fmt.Sprintf("%s (%s >= %s)", GateWhaleDominance, percent(d.TopWalletShare, 2), percent(th.Whale, 0))
	case d.TopOutcomeShare < th.Consensus:
		d.Gate = GateNoConsensus
		d.GateDetail = fmt.Sprintf("%s (%s < %s)", GateNoConsensus, percent(d.TopOutcomeShare, 2), percent(th.Consensus, 0))
	default:
		d.Recommendation = "BUY " + d.TopOutcome
	}
	return d
}

func percent(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v*100)
}
