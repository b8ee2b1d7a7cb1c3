// Package market builds the snapshot of a market that an analysis works on
// and decides whether the market is still worth scanning.
package market

import (
	"time"

	"github.com/liamashdown/polysignal/internal/polymarket/fetch"
	"github.com/liamashdown/polysignal/internal/polymarket/gammaapi"
)

// Gate names for markets that are not scanned
const (
	GateClosed   = "market_closed"
	GateInactive = "market_inactive"
	GateExpired  = "market_expired"
)

// Snapshot is the catalog view of one market at analysis time
type Snapshot struct {
	ConditionID          string     `json:"conditionId"`
	Question             string     `json:"question"`
	Slug                 string     `json:"slug"`
	Outcomes             []string   `json:"outcomes"`
	ImpliedProbabilities []float64  `json:"impliedProbabilities"`
	Active               *bool      `json:"active"`
	Closed               *bool      `json:"closed"`
	EndTime              *time.Time `json:"endTime,omitempty"`
}

// NewSnapshot combines the market as listed (by slug or inside an event) with
// its detail record. Outcomes, prices, status and end time prefer the detail
// record; identity fields prefer the listing. detail may be nil.
func NewSnapshot(listing gammaapi.Market, detail *gammaapi.Market) Snapshot {
	d := gammaapi.Market{}
	if detail != nil {
		d = *detail
	}

	s := Snapshot{
		ConditionID: first(string(listing.ConditionID), string(d.ConditionID)),
		Question:    first(string(listing.Question), string(d.Question)),
		Slug:        first(string(listing.Slug), string(d.Slug)),
		Active:      flag(d.Active, listing.Active),
		Closed:      flag(d.Closed, listing.Closed),
	}

	src := d
	if len(d.Outcomes) == 0 {
		src = listing
	}
	s.Outcomes = []string(src.Outcomes)
	if s.Outcomes == nil {
		s.Outcomes = []string{}
	}
	s.ImpliedProbabilities = Probabilities(src.OutcomePrices.Floats(), len(s.Outcomes))

	for _, m := range []gammaapi.Market{d, listing} {
		if end, ok := endTime(m); ok {
			s.EndTime = &end
			break
		}
	}
	return s
}

// Probabilities turns outcome prices into fractions aligned with n outcomes.
// Prices are percentages when any of them is above 1.5. Missing prices are 0
// and extra prices are dropped.
func Probabilities(prices []float64, n int) []float64 {
	scale := 1.0
	for _, p := range prices {
		if p > 1.5 {
			scale = 100
			break
		}
	}

	out := make([]float64, n)
	for i := 0; i < n && i < len(prices); i++ {
		out[i] = prices[i] / scale
	}
	return out
}

// Gate returns the reason a market must not be scanned, or "" when it is
// eligible. Closed wins over inactive, which wins over expired. Status flags
// only gate when the catalog states them explicitly.
func Gate(s Snapshot, now time.Time) string {
	switch {
	case s.Closed != nil && *s.Closed:
		return GateClosed
	case s.Active != nil && !*s.Active:
		return GateInactive
	case s.EndTime != nil && s.EndTime.Before(now):
		return GateExpired
	}
	return ""
}

func endTime(m gammaapi.Market) (time.Time, bool) {
	for _, ts := range m.EndTimes() {
		if !ts.IsZero() {
			return ts.Time, true
		}
	}
	return time.Time{}, false
}

func flag(preferred, fallback fetch.Bool) *bool {
	for _, b := range []fetch.Bool{preferred, fallback} {
		if b.Valid {
			v := b.Value
			return &v
		}
	}
	return nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
