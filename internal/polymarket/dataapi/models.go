package dataapi

import "github.com/liamashdown/polysignal/internal/polymarket/fetch"

// Position is one open position row of a wallet in a market
type Position struct {
	Outcome      fetch.Text   `json:"outcome"`
	CurrentValue fetch.Number `json:"currentValue"`
	TotalBought  fetch.Number `json:"totalBought"`
}

// Value is the current value, or the bought amount when the current value is
// not positive. Never negative.
func (p Position) Value() float64 {
	v := p.CurrentValue.Value
	if v <= 0 {
		v = p.TotalBought.Value
	}
	return max(v, 0)
}

// ClosedPosition is one resolved or sold position of a wallet
type ClosedPosition struct {
	RealizedPnl fetch.Number `json:"realizedPnl"`
	TotalBought fetch.Number `json:"totalBought"`
	Timestamp   fetch.Number `json:"timestamp"` // epoch seconds or milliseconds
}

// holder is one row of the holders payload; the wallet fields are read in
// priority order.
type holder struct {
	ProxyWallet fetch.Text `json:"proxyWallet"`
	Wallet      fetch.Text `json:"wallet"`
	User        fetch.Text `json:"user"`
	Address     fetch.Text `json:"address"`
}

func (h holder) wallet() string {
	for _, v := range []fetch.Text{h.ProxyWallet, h.Wallet, h.User, h.Address} {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

// ProfitKeys are the leaderboard fields that may carry lifetime profit,
// searched in order.
var ProfitKeys = []string{
	"pnl",
	"profit",
	"PNL",
	"pnlUsd",
	"pnl_usd",
	"pnlAllTime",
	"pnl_all_time",
	"totalPnl",
	"totalProfit",
	"lifetimePnl",
	"lifetimeProfit",
	"realizedPnl",
}
