// Package scoring turns the trading signals of one wallet into a weight.
//
// The weight is the product of five multipliers:
//
//	profit     clamp(max(profit, 0) / 5000, 1, 5)
//	win rate   0.5 + winRate            (unknown: 0.5 + 0.5)
//	recency    0.5 + 0.5*exp(-days/30)  (unknown: 0.75)
//	conviction clamp(ratio, 0.5, 3)     (unknown: 1)
//	value      sqrt(max(positionValue, 1))
package scoring

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

const (
	ProfitUnit       = 5000.0
	MaxProfitFactor  = 5.0
	UnknownRecency   = 0.75
	RecencyScaleDays = 30.0
	MinConviction    = 0.5
	MaxConviction    = 3.0

	// future timestamps within this window are clock skew, not bad data
	futureSkew = 60
)

// Opt is a float that may be unknown. Unknown values use a documented
// default multiplier instead of zero.
type Opt struct {
	Value float64
	Valid bool
}

// Some returns a known value
func Some(v float64) Opt { return Opt{Value: v, Valid: true} }

// None is the unknown value
var None = Opt{}

// Or returns the value, or def when unknown
func (o Opt) Or(def float64) float64 {
	if !o.Valid {
		return def
	}
	return o.Value
}

func (o Opt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt) UnmarshalJSON(data []byte) error {
	*o = None
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Features are the per-wallet inputs to Weight
type Features struct {
	LifetimeProfit     float64
	WinRate            Opt
	DaysSinceLastClose Opt
	ConvictionRatio    Opt
	PositionOutcome    string
	PositionValue      float64
}

// Breakdown is every multiplier of a weight
type Breakdown struct {
	Profit     float64 `json:"profit"`
	WinRate    float64 `json:"win_rate"`
	Recency    float64 `json:"recency"`
	Conviction float64 `json:"conviction"`
	Value      float64 `json:"value"`
	Weight     float64 `json:"weight"`
}

// Explain computes the multipliers and the resulting weight
func Explain(f Features) Breakdown {
	b := Breakdown{
		Profit:     clamp(math.Max(f.LifetimeProfit, 0)/ProfitUnit, 1, MaxProfitFactor),
		WinRate:    0.5 + f.WinRate.Or(0.5),
		Recency:    UnknownRecency,
		Conviction: clamp(f.ConvictionRatio.Or(1), MinConviction, MaxConviction),
		Value:      math.Sqrt(math.Max(f.PositionValue, 1)),
	}
	if f.DaysSinceLastClose.Valid {
		b.Recency = 0.5 + 0.5*math.Exp(-f.DaysSinceLastClose.Value/RecencyScaleDays)
	}

	b.Weight = math.Max(0, b.Profit*b.WinRate*b.Recency*b.Conviction*b.Value)
	return b
}

// Weight returns the non-negative weight of a wallet
func Weight(f Features) float64 {
	return Explain(f).Weight
}

// DaysSince converts an epoch timestamp in seconds or milliseconds to days
// before now. Non-positive timestamps and ones more than a minute in the
// future are unknown.
func DaysSince(ts int64, now time.Time) Opt {
	if ts > 10_000_000_000 {
		ts /= 1000
	}
	nowS := now.Unix()
	if ts <= 0 || ts > nowS+futureSkew {
		return None
	}
	return Some(math.Max(0, float64(nowS-ts)/86400))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
