// Package fetch is the read-only HTTP layer shared by the catalog (Gamma) and
// ledger (Data API) clients: response cache, retry with backoff, rate limits
// and per-invocation request stats.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/cache"
	"github.com/liamashdown/polysignal/internal/metrics"
	"github.com/liamashdown/polysignal/internal/ratelimit"
)

// Service names one logical remote service. Each has its own cache TTL,
// rate limit and headers.
type Service string

const (
	Catalog Service = "catalog"
	Ledger  Service = "ledger"
)

const (
	DefaultMaxAttempts    = 6
	DefaultInitialBackoff = 700 * time.Millisecond
	DefaultMaxBackoff     = 6 * time.Second
)

// ServiceOptions tunes one remote service
type ServiceOptions struct {
	TTL     time.Duration // <= 0 bypasses the cache entirely
	RPS     float64       // 0 = unlimited
	Headers map[string]string
}

// Options configures a Client
type Options struct {
	Catalog   ServiceOptions
	Ledger    ServiceOptions
	Timeout   time.Duration // per attempt
	UserAgent string
	Store     cache.Store // nil disables caching

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Request is one logical GET
type Request struct {
	Service  Service
	Endpoint string // metrics label, e.g. "markets_by_slug"
	URL      string // without query string
	Params   url.Values
	// Allow404 turns a 404 into ErrNotFound (and caches it) instead of an error.
	Allow404 bool
}

type service struct {
	opts    ServiceOptions
	limiter *ratelimit.Limiter
}

// Client issues cached, retried GET requests
type Client struct {
	httpClient *http.Client
	userAgent  string
	store      cache.Store
	services   map[Service]*service
	stats      *Stats
	log        *logrus.Logger

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New creates a Client with fresh Stats
func New(opts Options, log *logrus.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	c := &Client{
		httpClient:     &http.Client{Timeout: timeout},
		userAgent:      opts.UserAgent,
		store:          opts.Store,
		stats:          newStats(),
		log:            log,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		services: map[Service]*service{
			Catalog: {opts: opts.Catalog, limiter: ratelimit.New(opts.Catalog.RPS)},
			Ledger:  {opts: opts.Ledger, limiter: ratelimit.New(opts.Ledger.RPS)},
		},
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = DefaultInitialBackoff
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = DefaultMaxBackoff
	}
	return c
}

// Stats returns the request counters of this client
func (c *Client) Stats() *Stats {
	return c.stats
}

// Get returns the JSON body for req, from the cache when a fresh entry exists.
func (c *Client) Get(ctx context.Context, req Request) (json.RawMessage, error) {
	svc, ok := c.services[req.Service]
	if !ok {
		return nil, fmt.Errorf("unknown service %q", req.Service)
	}

	key := CacheKey(req.URL, req.Params)
	useCache := c.store != nil && svc.opts.TTL > 0

	if useCache {
		if cached, hit := c.lookup(ctx, req.Service, key); hit {
			if cached.NotFound {
				return nil, ErrNotFound
			}
			return cached.Body, nil
		}
	} else {
		metrics.RecordCacheLookup(string(req.Service), "bypass")
	}

	body, notFound, err := c.fetchWithRetry(ctx, req, svc)
	if err != nil {
		return nil, err
	}

	if notFound {
		if useCache {
			c.save(ctx, key, cachedResponse{NotFound: true}, svc.opts.TTL)
		}
		return nil, ErrNotFound
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s returned a non-JSON body", ErrRemoteData, req.URL)
	}

	if useCache {
		c.save(ctx, key, cachedResponse{Body: body}, svc.opts.TTL)
	}
	return body, nil
}

func (c *Client) lookup(ctx context.Context, svc Service, key string) (cachedResponse, bool) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("service", svc).Warn("Cache read failed, fetching from remote")
		found = false
	}

	var cached cachedResponse
	if found {
		cached, err = decodeCached(data)
		if err != nil {
			c.log.WithError(err).WithField("service", svc).Warn("Discarding unreadable cache entry")
			found = false
		}
	}

	c.stats.recordCache(found)
	if found {
		metrics.RecordCacheLookup(string(svc), "hit")
	} else {
		metrics.RecordCacheLookup(string(svc), "miss")
	}
	return cached, found
}

func (c *Client) save(ctx context.Context, key string, value cachedResponse, ttl time.Duration) {
	data, err := encodeCached(value)
	if err == nil {
		err = c.store.Set(ctx, key, data, ttl)
	}
	if err != nil {
		c.log.WithError(err).Warn("Failed to write cache entry")
	}
}

// fetchWithRetry performs the HTTP round trips. Transport failures and
// transient statuses are retried with exponential backoff; anything else is
// returned on the first attempt.
func (c *Client) fetchWithRetry(ctx context.Context, req Request, svc *service) ([]byte, bool, error) {
	fullURL := req.URL
	if len(req.Params) > 0 {
		fullURL += "?" + req.Params.Encode()
	}
	host := hostOf(req.URL)

	var (
		body     []byte
		notFound bool
		attempts int
		stopped  bool
	)

	stop := func(err error) error {
		stopped = true
		return backoff.Permanent(err)
	}

	op := func() error {
		attempts++

		if err := svc.limiter.Wait(ctx); err != nil {
			return stop(fmt.Errorf("rate limit wait: %w", err))
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return stop(fmt.Errorf("create request: %w", err))
		}
		if c.userAgent != "" {
			httpReq.Header.Set("User-Agent", c.userAgent)
		}
		httpReq.Header.Set("Accept", "application/json")
		for k, v := range svc.opts.Headers {
			httpReq.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		elapsed := time.Since(start)
		c.stats.recordHTTP(host, elapsed)

		if err != nil {
			metrics.RecordAPIRequest(string(req.Service), req.Endpoint, elapsed, "error")
			if ctx.Err() != nil {
				return stop(ctx.Err())
			}
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.RecordAPIRequest(string(req.Service), req.Endpoint, elapsed, "error")
			return fmt.Errorf("read body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound && req.Allow404:
			metrics.RecordAPIRequest(string(req.Service), req.Endpoint, elapsed, "not_found")
			notFound = true
			return nil
		case retryableStatus(resp.StatusCode):
			metrics.RecordAPIRequest(string(req.Service), req.Endpoint, elapsed, "error")
			return &StatusError{Code: resp.StatusCode, URL: req.URL, Body: string(data)}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			metrics.RecordAPIRequest(string(req.Service), req.Endpoint, elapsed, "error")
			return stop(&StatusError{Code: resp.StatusCode, URL: req.URL, Body: string(data)})
		}

		metrics.RecordAPIRequest(string(req.Service), req.Endpoint, elapsed, "success")
		body = data
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxInterval = c.maxBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()

	notify := func(err error, wait time.Duration) {
		metrics.RecordRetry(string(req.Service))
		c.log.WithFields(logrus.Fields{
			"service":  req.Service,
			"endpoint": req.Endpoint,
			"attempt":  attempts,
			"backoff":  wait.String(),
		}).WithError(err).Warn("Retrying remote request")
	}

	err := backoff.RetryNotify(op,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx),
		notify)
	if err != nil {
		if stopped || ctx.Err() != nil {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w after %d attempts: %w", ErrTransport, attempts, err)
	}
	return body, notFound, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
