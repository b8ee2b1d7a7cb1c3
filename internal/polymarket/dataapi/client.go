package dataapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/liamashdown/polysignal/internal/config"
	"github.com/liamashdown/polysignal/internal/polymarket/fetch"
)

const (
	maxHolders        = 20
	maxPositions      = 500
	maxClosedPageSize = 50
	// DefaultPositionsLimit is the positions page requested per wallet and market
	DefaultPositionsLimit = 200
)

var walletPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)

// Fetcher issues cached GET requests
type Fetcher interface {
	Get(ctx context.Context, req fetch.Request) (json.RawMessage, error)
}

// Client handles communication with the Polymarket Data API
type Client struct {
	fetcher Fetcher
	baseURL string
}

// NewClient creates a new Data API client
func NewClient(fetcher Fetcher, baseURL string) *Client {
	return &Client{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// AuthHeaders returns the request headers for the configured auth mode plus
// any extra headers.
func AuthHeaders(cfg config.LedgerConfig) map[string]string {
	headers := map[string]string{}
	switch cfg.AuthMode {
	case config.AuthModeBearer:
		headers["Authorization"] = "Bearer " + cfg.BearerToken
	case config.AuthModeAPIKey:
		headers["X-API-KEY"] = cfg.APIKey
	case config.AuthModeNone:
		// No auth headers
	}

	for k, v := range cfg.ExtraHeaders {
		headers[k] = v
	}
	return headers
}

// Holders returns the deduplicated wallet addresses holding a market, in
// payload order. limit is clamped to [1,20] and minBalance floored at 0.
func (c *Client) Holders(ctx context.Context, conditionID string, limit int, minBalance float64) ([]string, error) {
	params := url.Values{}
	params.Set("market", conditionID)
	params.Set("limit", strconv.Itoa(min(max(limit, 1), maxHolders)))
	params.Set("minBalance", strconv.Itoa(int(max(minBalance, 0))))

	body, err := c.get(ctx, "holders", "/holders", params)
	if err != nil || body == nil {
		return nil, err
	}
	return ExtractWallets(body), nil
}

// ExtractWallets reads holder addresses from any of the holders payload
// shapes:
//
//	[{"token": ..., "holders": [{"proxyWallet": ...}]}, ...]
//	{"holders": [...]}
//	[{"proxyWallet": ...}, ...]
//
// The first 0x-prefixed 40 hex digit address in each wallet field is used,
// falling back to the raw field.
func ExtractWallets(body json.RawMessage) []string {
	var rows []json.RawMessage

	objs := fetch.Objects(body)
	switch {
	case isList(body) && len(objs) > 0 && hasKey(objs[0], "holders"):
		for _, obj := range objs {
			var group struct {
				Holders json.RawMessage `json:"holders"`
			}
			if json.Unmarshal(obj, &group) == nil {
				rows = append(rows, listObjects(group.Holders)...)
			}
		}
	case isList(body):
		rows = objs
	default:
		var wrapper struct {
			Holders json.RawMessage `json:"holders"`
		}
		if json.Unmarshal(body, &wrapper) == nil {
			rows = listObjects(wrapper.Holders)
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		var h holder
		if err := json.Unmarshal(row, &h); err != nil {
			continue
		}
		w := h.wallet()
		if w == "" {
			continue
		}
		if m := walletPattern.FindString(w); m != "" {
			w = m
		}
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// LeaderboardProfit returns the all-time profit of a wallet. The v1
// leaderboard is tried first, then the legacy endpoint. known is false when
// neither has a row with a profit field.
func (c *Client) LeaderboardProfit(ctx context.Context, wallet string) (profit float64, known bool, err error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("timePeriod", "ALL")
	params.Set("category", "OVERALL")
	params.Set("limit", "1")

	body, err := c.get(ctx, "leaderboard_v1", "/v1/leaderboard", params)
	if err != nil {
		return 0, false, err
	}
	row, ok := leaderboardRow(body)
	if !ok {
		legacy := url.Values{}
		legacy.Set("user", wallet)
		legacy.Set("limit", "1")
		body, err = c.get(ctx, "leaderboard", "/leaderboard", legacy)
		if err != nil {
			return 0, false, err
		}
		if row, ok = leaderboardRow(body); !ok {
			return 0, false, nil
		}
	}

	profit, known = PickProfit(row)
	return profit, known, nil
}

// leaderboardRow accepts [row, ...], {"data": [row, ...]} or a bare row
func leaderboardRow(body json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(body) == 0 {
		return nil, false
	}

	var obj json.RawMessage
	if isList(body) {
		var items []json.RawMessage
		if json.Unmarshal(body, &items) != nil || len(items) == 0 {
			return nil, false
		}
		obj = items[0]
	} else {
		obj = body
		var wrapper struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(body, &wrapper) == nil && isList(wrapper.Data) {
			var items []json.RawMessage
			if json.Unmarshal(wrapper.Data, &items) == nil && len(items) > 0 && isObject(items[0]) {
				obj = items[0]
			}
		}
	}

	var row map[string]json.RawMessage
	if !isObject(obj) || json.Unmarshal(obj, &row) != nil || len(row) == 0 {
		return nil, false
	}
	return row, true
}

// PickProfit returns the first present, non-null profit field of a
// leaderboard row. An unparsable value counts as 0.
func PickProfit(row map[string]json.RawMessage) (float64, bool) {
	for _, key := range ProfitKeys {
		raw, ok := row[key]
		if !ok {
			continue
		}
		var n fetch.Number
		if err := json.Unmarshal(raw, &n); err != nil || !n.Valid {
			continue
		}
		return n.Value, true
	}
	return 0, false
}

// Positions returns a wallet's open positions in one market
func (c *Client) Positions(ctx context.Context, wallet, conditionID string, limit int) ([]Position, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("market", conditionID)
	params.Set("limit", strconv.Itoa(min(max(limit, 1), maxPositions)))

	body, err := c.get(ctx, "positions", "/positions", params)
	if err != nil || body == nil {
		return nil, err
	}
	return decodeRows[Position](body), nil
}

// ClosedPositions returns one page of a wallet's closed positions, most
// recent first. limit is clamped to [1,50].
func (c *Client) ClosedPositions(ctx context.Context, wallet string, limit, offset int) ([]ClosedPosition, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("limit", strconv.Itoa(ClampClosedPageSize(limit)))
	params.Set("offset", strconv.Itoa(max(offset, 0)))
	params.Set("sortBy", "timestamp")
	params.Set("sortDirection", "desc")

	body, err := c.get(ctx, "closed_positions", "/closed-positions", params)
	if err != nil || body == nil {
		return nil, err
	}
	return decodeRows[ClosedPosition](body), nil
}

// ClampClosedPageSize limits a closed-positions page to what the API serves
func ClampClosedPageSize(n int) int {
	return min(max(n, 1), maxClosedPageSize)
}

// get returns nil, nil for a 404
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) (json.RawMessage, error) {
	body, err := c.fetcher.Get(ctx, fetch.Request{
		Service:  fetch.Ledger,
		Endpoint: endpoint,
		URL:      c.baseURL + path,
		Params:   params,
		Allow404: true,
	})
	if errors.Is(err, fetch.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("data api %s: %w", endpoint, err)
	}
	return body, nil
}

// decodeRows decodes the object rows of a list or {"data": [...]} payload.
// A bare object is not a row list.
func decodeRows[T any](body json.RawMessage) []T {
	body = fetch.Unwrap(body)
	if !isList(body) {
		return nil
	}
	var out []T
	for _, obj := range fetch.Objects(body) {
		var row T
		if err := json.Unmarshal(obj, &row); err == nil {
			out = append(out, row)
		}
	}
	return out
}

func listObjects(raw json.RawMessage) []json.RawMessage {
	if !isList(raw) {
		return nil
	}
	return fetch.Objects(raw)
}

func hasKey(obj json.RawMessage, key string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}

func isList(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "[")
}

func isObject(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "{")
}
