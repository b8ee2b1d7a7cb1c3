// Package marketref parses user supplied market and event identifiers.
package marketref

import (
	"errors"
	"net/url"
	"strings"
)

// Kind is what a reference points at
type Kind string

const (
	KindMarket   Kind = "market"
	KindEvent    Kind = "event"
	KindCategory Kind = "category"
)

// ErrEmpty is returned for a blank reference
var ErrEmpty = errors.New("empty polymarket reference")

// Ref is a parsed reference
type Ref struct {
	Kind       Kind   `json:"kind"`
	Identifier string `json:"identifier"`
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.Identifier
}

var prefixes = []struct {
	prefix string
	kind   Kind
}{
	{"market:", KindMarket},
	{"event:", KindEvent},
	{"category:", KindCategory},
}

// Parse accepts
//
//	https://polymarket.com/market/<slug>
//	https://polymarket.com/event/<slug>
//	https://polymarket.com/<category>
//	market:<slug>, event:<slug>, category:<slug>
//	<slug>
//
// A bare slug, or a URL on another host, is a market.
func Parse(ref string) (Ref, error) {
	s := strings.TrimSpace(ref)
	if s == "" {
		return Ref{}, ErrEmpty
	}

	lowered := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lowered, p.prefix) {
			return Ref{Kind: p.kind, Identifier: strings.TrimSpace(s[len(p.prefix):])}, nil
		}
	}

	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && strings.HasSuffix(strings.ToLower(u.Host), "polymarket.com") {
			var parts []string
			for _, p := range strings.Split(strings.Trim(u.Path, "/"), "/") {
				if p != "" {
					parts = append(parts, p)
				}
			}
			switch {
			case len(parts) >= 2 && strings.EqualFold(parts[0], "market"):
				return Ref{Kind: KindMarket, Identifier: parts[1]}, nil
			case len(parts) >= 2 && strings.EqualFold(parts[0], "event"):
				return Ref{Kind: KindEvent, Identifier: parts[1]}, nil
			case len(parts) == 1:
				return Ref{Kind: KindCategory, Identifier: parts[0]}, nil
			}
		}
	}

	return Ref{Kind: KindMarket, Identifier: s}, nil
}
