package enrich

import (
	"sort"

	"github.com/liamashdown/polysignal/internal/scoring"
)

// Source says where a wallet's lifetime profit came from
type Source string

const (
	SourceLeaderboard Source = "LEADERBOARD"
	SourceUnknown     Source = "UNKNOWN"
)

// Drop reasons. Every wallet handed to the pipeline ends up either as a Row
// or as exactly one of these.
const (
	DropPnlUnknown        = "pnl_unknown"
	DropPnlBelowMinProfit = "pnl_below_min_profit"
	DropNoPosition        = "no_position_in_market"
	DropPositionZeroValue = "position_zero_value"
	DropPositionsError    = "positions_error"
	DropEnrichError       = "enrich_error"
	DropNoHolders         = "no_holders_returned"
	DropFilteredOut       = "filtered_out"
)

// DropReasons counts excluded wallets per reason
type DropReasons map[string]int

// Add merges other into d
func (d DropReasons) Add(other DropReasons) {
	for k, v := range other {
		d[k] += v
	}
}

// Total is the number of dropped wallets
func (d DropReasons) Total() int {
	n := 0
	for _, v := range d {
		n += v
	}
	return n
}

// Row is one qualifying wallet with its signals and weight
type Row struct {
	Address                     string            `json:"address"`
	Outcome                     string            `json:"outcome"`
	PositionValue               float64           `json:"positionValue"`
	WinRate                     scoring.Opt       `json:"winRate"`
	WinRateSampleSize           int               `json:"winRateSampleSize"`
	ClosedPositionsScanned      int               `json:"closedPositionsScanned"`
	DaysSinceLastClose          scoring.Opt       `json:"daysSinceLastClose"`
	ConvictionRatio             scoring.Opt       `json:"convictionRatio"`
	Weight                      float64           `json:"weight"`
	Breakdown                   scoring.Breakdown `json:"breakdown"`
	LifetimeProfit              float64           `json:"lifetimeProfit"`
	LifetimeProfitKnown         bool              `json:"lifetimeProfitKnown"`
	LifetimeProfitSource        Source            `json:"lifetimeProfitSource"`
	RecentRealizedPnl           scoring.Opt       `json:"recentRealizedPnl"`
	RecentRealizedPnlSampleSize int               `json:"recentRealizedPnlSampleSize"`
}

// SortRows orders rows by descending weight. Equal weights are ordered by
// address so the output does not depend on discovery order.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Weight != rows[j].Weight {
			return rows[i].Weight > rows[j].Weight
		}
		return rows[i].Address < rows[j].Address
	})
}
