package gammaapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/liamashdown/polysignal/internal/polymarket/fetch"
)

// Fetcher issues cached GET requests
type Fetcher interface {
	Get(ctx context.Context, req fetch.Request) (json.RawMessage, error)
}

// Client handles communication with the Polymarket Gamma API
type Client struct {
	fetcher Fetcher
	baseURL string
}

// NewClient creates a new Gamma API client
func NewClient(fetcher Fetcher, baseURL string) *Client {
	return &Client{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// MarketBySlug fetches a market by slug. The slug endpoint is tried first,
// then the list endpoint filtered by slug.
func (c *Client) MarketBySlug(ctx context.Context, slug string) (*Market, error) {
	body, err := c.get(ctx, "markets_by_slug", "/markets/slug/"+url.PathEscape(slug), nil)
	if err != nil {
		return nil, err
	}
	if m, ok := decodeMarket(body); ok {
		return m, nil
	}

	params := url.Values{}
	params.Set("slug", slug)
	params.Set("limit", "1")
	body, err = c.get(ctx, "markets", "/markets", params)
	if err != nil {
		return nil, err
	}
	if m, ok := decodeMarket(body); ok {
		return m, nil
	}
	return nil, fmt.Errorf("market %q: %w", slug, fetch.ErrNotFound)
}

// MarketByConditionID fetches the detail record of a market
func (c *Client) MarketByConditionID(ctx context.Context, conditionID string) (*Market, error) {
	params := url.Values{}
	params.Set("condition_ids", conditionID)
	params.Set("limit", "1")

	body, err := c.get(ctx, "markets_by_condition", "/markets", params)
	if err != nil {
		return nil, err
	}
	if m, ok := decodeMarket(body); ok {
		return m, nil
	}
	return nil, fmt.Errorf("market %s: %w", conditionID, fetch.ErrNotFound)
}

// EventBySlug fetches an event by slug, falling back to the list endpoint
func (c *Client) EventBySlug(ctx context.Context, slug string) (*Event, error) {
	body, err := c.get(ctx, "events_by_slug", "/events/slug/"+url.PathEscape(slug), nil)
	if err != nil {
		return nil, err
	}
	if e, ok := decodeEvent(body); ok {
		return e, nil
	}

	params := url.Values{}
	params.Set("slug", slug)
	params.Set("limit", "1")
	body, err = c.get(ctx, "events", "/events", params)
	if err != nil {
		return nil, err
	}
	if e, ok := decodeEvent(body); ok {
		return e, nil
	}
	return nil, fmt.Errorf("event %q: %w", slug, fetch.ErrNotFound)
}

// get returns nil, nil for a 404 so callers can fall through to the next shape
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) (json.RawMessage, error) {
	body, err := c.fetcher.Get(ctx, fetch.Request{
		Service:  fetch.Catalog,
		Endpoint: endpoint,
		URL:      c.baseURL + path,
		Params:   params,
		Allow404: true,
	})
	if errors.Is(err, fetch.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gamma %s: %w", endpoint, err)
	}
	return body, nil
}

// firstObject accepts an object, a list of objects or a {"data": ...} wrapper
// around either, and returns the first object if it has any fields.
func firstObject(body json.RawMessage) (json.RawMessage, bool) {
	if len(body) == 0 {
		return nil, false
	}
	objs := fetch.Objects(fetch.Unwrap(body))
	if len(objs) == 0 {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(objs[0], &fields); err != nil || len(fields) == 0 {
		return nil, false
	}
	return objs[0], true
}

func decodeMarket(body json.RawMessage) (*Market, bool) {
	obj, ok := firstObject(body)
	if !ok {
		return nil, false
	}
	var m Market
	if err := json.Unmarshal(obj, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func decodeEvent(body json.RawMessage) (*Event, bool) {
	obj, ok := firstObject(body)
	if !ok {
		return nil, false
	}
	var e Event
	if err := json.Unmarshal(obj, &e); err != nil {
		return nil, false
	}
	return &e, true
}
