// Package app wires one analysis invocation: cache store, fetch client, API
// clients and analyzer.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/analysis"
	"github.com/liamashdown/polysignal/internal/cache"
	"github.com/liamashdown/polysignal/internal/config"
	"github.com/liamashdown/polysignal/internal/polymarket/dataapi"
	"github.com/liamashdown/polysignal/internal/polymarket/fetch"
	"github.com/liamashdown/polysignal/internal/polymarket/gammaapi"
)

// Runner runs analyses. Every call gets its own fetch client, so request
// stats never mix between concurrent invocations.
type Runner struct {
	cfg   *config.Config
	store cache.Store // shared store; nil opens one per call
	log   *logrus.Logger
}

// NewRunner creates a Runner. store may be nil, in which case each call opens
// (and closes) the store for its own cache directory.
func NewRunner(cfg *config.Config, store cache.Store, log *logrus.Logger) *Runner {
	return &Runner{cfg: cfg, store: store, log: log}
}

// Analyze runs one analyzeMarket invocation and attaches its request stats
func (r *Runner) Analyze(ctx context.Context, reference string, opts analysis.Options) (*analysis.Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	store, release, err := r.openStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer release()

	if store != nil && opts.ClearCache {
		if err := store.Clear(ctx); err != nil {
			r.log.WithError(err).Warn("Failed to clear cache")
		} else {
			r.log.Info("Cache cleared")
		}
	}

	client := r.newFetchClient(store, opts)
	analyzer := analysis.New(
		gammaapi.NewClient(client, r.cfg.Catalog.BaseURL),
		dataapi.NewClient(client, r.cfg.Ledger.BaseURL),
		r.log,
	)

	res, err := analyzer.AnalyzeMarket(ctx, reference, opts)
	stats := client.Stats().Snapshot()
	r.log.WithFields(logrus.Fields{
		"http_requests": stats.HTTPRequests,
		"cache_hits":    stats.CacheHits,
		"cache_misses":  stats.CacheMisses,
		"http_time_s":   stats.HTTPTimeS,
		"elapsed_s":     stats.ElapsedS,
	}).Debug("Request stats")
	if err != nil {
		return nil, err
	}
	res.RequestStats = &stats
	return res, nil
}

// openStore returns the store for this call and a release func. Caching off
// yields a nil store, which makes the fetch client skip the cache.
func (r *Runner) openStore(ctx context.Context, opts analysis.Options) (cache.Store, func(), error) {
	noop := func() {}
	if !opts.UseCache {
		return nil, noop, nil
	}
	if r.store != nil {
		return r.store, noop, nil
	}

	store, err := cache.Open(ctx, r.cfg.Cache, opts.CacheDirectory, r.log)
	if err != nil {
		return nil, noop, fmt.Errorf("open cache: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			r.log.WithError(err).Warn("Failed to close cache")
		}
	}, nil
}

func (r *Runner) newFetchClient(store cache.Store, opts analysis.Options) *fetch.Client {
	return fetch.New(fetch.Options{
		Catalog: fetch.ServiceOptions{
			TTL: opts.CatalogTTL,
			RPS: r.cfg.Catalog.RPS,
		},
		Ledger: fetch.ServiceOptions{
			TTL:     opts.LedgerTTL,
			RPS:     r.cfg.Ledger.RPS,
			Headers: dataapi.AuthHeaders(r.cfg.Ledger),
		},
		Timeout:   opts.PerCallTimeout,
		UserAgent: r.cfg.UserAgent,
		Store:     store,
	}, r.log)
}
