package analysis

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/liamashdown/polysignal/internal/aggregate"
	"github.com/liamashdown/polysignal/internal/config"
	"github.com/liamashdown/polysignal/internal/enrich"
)

var validate = validator.New()

// Options controls one analyzeMarket invocation
type Options struct {
	MinProfit           float64       `json:"min_profit" validate:"gte=0"`
	HoldersLimit        int           `json:"holders_limit" validate:"gte=1"`
	MinBalance          float64       `json:"min_balance" validate:"gte=0"`
	MaxClosedPositions  int           `json:"max_closed_positions" validate:"gte=0"`
	ClosedPageSize      int           `json:"closed_page_size" validate:"gte=1"`
	ConsensusThreshold  float64       `json:"consensus_threshold" validate:"gte=0,lte=1"`
	WhaleThreshold      float64       `json:"whale_threshold" validate:"gte=0,lte=1"`
	MinQualifiedWallets int           `json:"min_qualified_wallets" validate:"gte=0"`
	Concurrency         int           `json:"concurrency" validate:"gte=1"`
	PerCallTimeout      time.Duration `json:"per_call_timeout" validate:"gt=0"`

	// MarketIndex picks one market of a multi-market event. Range is checked
	// against the event, not here.
	MarketIndex *int `json:"market_index,omitempty"`
	AllMarkets  bool `json:"all_markets"`

	// Cache controls, consumed when the fetch client is built
	UseCache       bool          `json:"use_cache"`
	CacheDirectory string        `json:"cache_directory"`
	ClearCache     bool          `json:"clear_cache"`
	CatalogTTL     time.Duration `json:"catalog_ttl" validate:"gte=0"`
	LedgerTTL      time.Duration `json:"ledger_ttl" validate:"gte=0"`
}

// OptionsFromConfig returns the configured defaults
func OptionsFromConfig(cfg *config.Config) Options {
	a := cfg.Analysis
	return Options{
		MinProfit:           a.MinProfit,
		HoldersLimit:        a.HoldersLimit,
		MinBalance:          a.MinBalance,
		MaxClosedPositions:  a.MaxClosedPositions,
		ClosedPageSize:      a.ClosedPageSize,
		ConsensusThreshold:  a.ConsensusThreshold,
		WhaleThreshold:      a.WhaleThreshold,
		MinQualifiedWallets: a.MinQualifiedWallets,
		Concurrency:         a.Concurrency,
		PerCallTimeout:      a.PerCallTimeout,
		UseCache:            cfg.Cache.Enabled,
		CacheDirectory:      cfg.Cache.Directory,
		CatalogTTL:          cfg.Cache.CatalogTTL,
		LedgerTTL:           cfg.Cache.LedgerTTL,
	}
}

// Validate checks field bounds
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

func (o Options) thresholds() aggregate.Thresholds {
	return aggregate.Thresholds{
		Consensus:           o.ConsensusThreshold,
		Whale:               o.WhaleThreshold,
		MinQualifiedWallets: o.MinQualifiedWallets,
	}
}

func (o Options) pipeline() enrich.Options {
	return enrich.Options{
		MinProfit:      o.MinProfit,
		MaxClosed:      o.MaxClosedPositions,
		ClosedPageSize: o.ClosedPageSize,
		Concurrency:    o.Concurrency,
	}
}
