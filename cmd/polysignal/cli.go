package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/liamashdown/polysignal/internal/analysis"
	"github.com/liamashdown/polysignal/internal/config"
)

const usageText = `Usage:
  polysignal [analyze] <polymarket url | slug | market:<slug> | event:<slug>> [flags]
  polysignal doctor [flags]

Flags:
`

const (
	commandAnalyze = "analyze"
	commandDoctor  = "doctor"
)

var errUsage = errors.New("usage")

// invocation is a parsed command line
type invocation struct {
	command    string
	reference  string
	configPath string
	debug      bool
	json       bool

	flags   analysisFlags
	visited map[string]bool
}

// analysisFlags mirror analysis.Options. Only flags given on the command line
// override the loaded configuration.
type analysisFlags struct {
	minProfit           float64
	holdersLimit        int
	minBalance          float64
	concurrency         int
	marketIndex         int
	all                 bool
	maxClosed           int
	closedPageSize      int
	consensusThreshold  float64
	whaleThreshold      float64
	minQualifiedWallets int
	cacheDir            string
	noCache             bool
	clearCache          bool
	ttlGamma            time.Duration
	ttlData             time.Duration
	timeout             time.Duration
}

func newFlagSet(inv *invocation, stderr io.Writer) *flag.FlagSet {
	d := config.Defaults()
	a := d.Analysis
	f := &inv.flags

	fs := flag.NewFlagSet("polysignal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	fs.StringVar(&inv.configPath, "config", "", "path to a TOML configuration file")
	fs.BoolVar(&inv.debug, "debug", false, "print request/cache stats and extra diagnostics")
	fs.BoolVar(&inv.json, "json", false, "print the analysis result as JSON")

	fs.Float64Var(&f.minProfit, "min-profit", a.MinProfit, "only include wallets with at least this all-time PnL (USD)")
	fs.IntVar(&f.holdersLimit, "holders-limit", a.HoldersLimit, "top holders to consider (remote caps at 20 per token)")
	fs.Float64Var(&f.minBalance, "min-balance", a.MinBalance, "min token balance to consider in holders list")
	fs.IntVar(&f.concurrency, "concurrency", a.Concurrency, "max concurrent wallet profiling requests")
	fs.IntVar(&f.marketIndex, "market-index", -1, "if the reference is an event, pick a market index from the printed list")
	fs.BoolVar(&f.all, "all", false, "if the reference is an event, analyze all of its markets (slow)")
	fs.IntVar(&f.maxClosed, "max-closed", a.MaxClosedPositions, "max closed positions to scan per wallet")
	fs.IntVar(&f.closedPageSize, "closed-page-size", a.ClosedPageSize, "closed positions page size (max 50)")
	fs.Float64Var(&f.consensusThreshold, "consensus-threshold", a.ConsensusThreshold, "top outcome weight share required to recommend BUY")
	fs.Float64Var(&f.whaleThreshold, "whale-threshold", a.WhaleThreshold, "stay out when a single wallet's weight share reaches this")
	fs.IntVar(&f.minQualifiedWallets, "min-qualified-wallets", a.MinQualifiedWallets, "minimum wallets passing filters to consider a BUY")
	fs.StringVar(&f.cacheDir, "cache-dir", d.Cache.Directory, "disk cache directory (persists across runs)")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable cache reads and writes (does not delete the cache)")
	fs.BoolVar(&f.clearCache, "clear-cache", false, "clear the cache before running")
	fs.DurationVar(&f.ttlGamma, "ttl-gamma", d.Cache.CatalogTTL, "catalog (gamma) cache TTL")
	fs.DurationVar(&f.ttlData, "ttl-data", d.Cache.LedgerTTL, "ledger (data) cache TTL")
	fs.DurationVar(&f.timeout, "timeout", a.PerCallTimeout, "per remote call timeout")
	return fs
}

// parseArgs accepts flags before, between and after the positional arguments
func parseArgs(args []string, stderr io.Writer) (*invocation, error) {
	inv := &invocation{visited: map[string]bool{}}
	fs := newFlagSet(inv, stderr)

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	fs.Visit(func(f *flag.Flag) { inv.visited[f.Name] = true })

	if len(positional) > 0 && strings.EqualFold(positional[0], commandDoctor) {
		inv.command = commandDoctor
		return inv, nil
	}

	inv.command = commandAnalyze
	if len(positional) > 0 && strings.EqualFold(positional[0], commandAnalyze) {
		positional = positional[1:]
	}
	switch len(positional) {
	case 0:
		fmt.Fprintln(stderr, `Missing URL. Try: polysignal "https://polymarket.com/event/<slug>"`)
		fs.Usage()
		return nil, errUsage
	case 1:
		inv.reference = positional[0]
	default:
		fmt.Fprintf(stderr, "Expected exactly one URL. Got: %q\n", positional)
		return nil, errUsage
	}

	if inv.visited["market-index"] && inv.flags.marketIndex < 0 {
		fmt.Fprintln(stderr, "--market-index must be >= 0")
		return nil, errUsage
	}
	return inv, nil
}

// options starts from the configuration and applies explicit flags
func (inv *invocation) options(cfg *config.Config) analysis.Options {
	opts := analysis.OptionsFromConfig(cfg)
	f := inv.flags
	set := inv.visited

	if set["min-profit"] {
		opts.MinProfit = f.minProfit
	}
	if set["holders-limit"] {
		opts.HoldersLimit = f.holdersLimit
	}
	if set["min-balance"] {
		opts.MinBalance = f.minBalance
	}
	if set["concurrency"] {
		opts.Concurrency = f.concurrency
	}
	if set["market-index"] {
		idx := f.marketIndex
		opts.MarketIndex = &idx
	}
	if set["max-closed"] {
		opts.MaxClosedPositions = f.maxClosed
	}
	if set["closed-page-size"] {
		opts.ClosedPageSize = f.closedPageSize
	}
	if set["consensus-threshold"] {
		opts.ConsensusThreshold = f.consensusThreshold
	}
	if set["whale-threshold"] {
		opts.WhaleThreshold = f.whaleThreshold
	}
	if set["min-qualified-wallets"] {
		opts.MinQualifiedWallets = f.minQualifiedWallets
	}
	if set["cache-dir"] {
		opts.CacheDirectory = f.cacheDir
	}
	if set["ttl-gamma"] {
		opts.CatalogTTL = f.ttlGamma
	}
	if set["ttl-data"] {
		opts.LedgerTTL = f.ttlData
	}
	if set["timeout"] {
		opts.PerCallTimeout = f.timeout
	}

	opts.AllMarkets = f.all
	opts.ClearCache = f.clearCache
	if f.noCache {
		opts.UseCache = false
	}
	return opts
}
