package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/liamashdown/polysignal/internal/analysis"
)

var validate = validator.New()

// analyzeQuery holds the /api/analyze parameters. Bounds are tighter than
// analysis.Options so one request cannot pin the server.
type analyzeQuery struct {
	URL                 string  `validate:"required"`
	MarketIndex         *int    `validate:"omitempty,min=0"`
	All                 bool
	MinProfit           float64 `validate:"min=0"`
	HoldersLimit        int     `validate:"min=1,max=200"`
	MinBalance          float64 `validate:"min=0"`
	MaxClosed           int     `validate:"min=0,max=5000"`
	ClosedPageSize      int     `validate:"min=1,max=500"`
	ConsensusThreshold  float64 `validate:"min=0,max=1"`
	WhaleThreshold      float64 `validate:"min=0,max=1"`
	MinQualifiedWallets int     `validate:"min=0,max=200"`
	Concurrency         int     `validate:"min=1,max=50"`
	TimeoutS            float64 `validate:"min=1,max=120"`
	Debug               bool
	Format              string  `validate:"oneof=json text"`
}

// parseAnalyzeQuery reads the query string over the configured defaults
func parseAnalyzeQuery(values url.Values, defaults analysis.Options) (analyzeQuery, error) {
	q := analyzeQuery{
		URL:                 strings.TrimSpace(values.Get("url")),
		MinProfit:           defaults.MinProfit,
		HoldersLimit:        defaults.HoldersLimit,
		MinBalance:          defaults.MinBalance,
		MaxClosed:           defaults.MaxClosedPositions,
		ClosedPageSize:      defaults.ClosedPageSize,
		ConsensusThreshold:  defaults.ConsensusThreshold,
		WhaleThreshold:      defaults.WhaleThreshold,
		MinQualifiedWallets: defaults.MinQualifiedWallets,
		Concurrency:         defaults.Concurrency,
		TimeoutS:            defaults.PerCallTimeout.Seconds(),
		Format:              "json",
	}

	p := &paramReader{values: values}
	p.optionalInt("market_index", &q.MarketIndex)
	p.boolean("all", &q.All)
	p.float("min_profit", &q.MinProfit)
	p.integer("holders_limit", &q.HoldersLimit)
	p.float("min_balance", &q.MinBalance)
	p.integer("max_closed", &q.MaxClosed)
	p.integer("closed_page_size", &q.ClosedPageSize)
	p.float("consensus_threshold", &q.ConsensusThreshold)
	p.float("whale_threshold", &q.WhaleThreshold)
	p.integer("min_qualified_wallets", &q.MinQualifiedWallets)
	p.integer("concurrency", &q.Concurrency)
	p.float("timeout_s", &q.TimeoutS)
	p.boolean("debug", &q.Debug)
	if f := values.Get("format"); f != "" {
		q.Format = strings.ToLower(f)
	}
	if len(p.errs) > 0 {
		return q, fmt.Errorf("%w: %s", analysis.ErrInvalidOptions, strings.Join(p.errs, "; "))
	}

	if err := validate.Struct(q); err != nil {
		return q, fmt.Errorf("%w: %v", analysis.ErrInvalidOptions, err)
	}
	return q, nil
}

// options applies the query to the configured defaults. Cache settings stay
// server-side.
func (q analyzeQuery) options(defaults analysis.Options) analysis.Options {
	opts := defaults
	opts.MarketIndex = q.MarketIndex
	opts.AllMarkets = q.All
	opts.MinProfit = q.MinProfit
	opts.HoldersLimit = q.HoldersLimit
	opts.MinBalance = q.MinBalance
	opts.MaxClosedPositions = q.MaxClosed
	opts.ClosedPageSize = q.ClosedPageSize
	opts.ConsensusThreshold = q.ConsensusThreshold
	opts.WhaleThreshold = q.WhaleThreshold
	opts.MinQualifiedWallets = q.MinQualifiedWallets
	opts.Concurrency = q.Concurrency
	opts.PerCallTimeout = time.Duration(q.TimeoutS * float64(time.Second))
	opts.ClearCache = false
	return opts
}

// paramReader collects parse errors so one response can report all of them
type paramReader struct {
	values url.Values
	errs   []string
}

func (p *paramReader) raw(name string) (string, bool) {
	v := strings.TrimSpace(p.values.Get(name))
	return v, v != ""
}

func (p *paramReader) fail(name, kind, v string) {
	p.errs = append(p.errs, fmt.Sprintf("%s: %q is not a valid %s", name, v, kind))
}

func (p *paramReader) float(name string, dst *float64) {
	v, ok := p.raw(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(name, "number", v)
		return
	}
	*dst = f
}

func (p *paramReader) integer(name string, dst *int) {
	v, ok := p.raw(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, "integer", v)
		return
	}
	*dst = n
}

func (p *paramReader) optionalInt(name string, dst **int) {
	v, ok := p.raw(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, "integer", v)
		return
	}
	*dst = &n
}

func (p *paramReader) boolean(name string, dst *bool) {
	v, ok := p.raw(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(name, "boolean", v)
		return
	}
	*dst = b
}
