// Command polysignal analyzes a Polymarket market or event from the terminal
// and prints a smart-money recommendation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/alerts"
	"github.com/liamashdown/polysignal/internal/analysis"
	"github.com/liamashdown/polysignal/internal/app"
	"github.com/liamashdown/polysignal/internal/config"
	"github.com/liamashdown/polysignal/internal/render"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const selectionHint = "Re-run with --market-index <N> (or --all)."

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	inv, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	// stdout carries the rendered result, so logs go to stderr
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
	if inv.debug {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(inv.configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		return 1
	}

	opts := inv.options(cfg)
	if inv.command == commandDoctor {
		printDoctor(ctx, stdout, cfg, opts.CacheDirectory)
		return 0
	}

	runner := app.NewRunner(cfg, nil, log)
	res, err := runner.Analyze(ctx, inv.reference, opts)
	if err != nil {
		return reportError(stderr, log, err, inv.debug)
	}

	if err := alerts.Notify(ctx, alerts.NewSender(cfg, log), res, cfg.Environment); err != nil {
		log.WithError(err).Warn("Failed to send report")
	}

	if inv.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.WithError(err).Error("Failed to encode result")
			return 1
		}
		return 0
	}

	if inv.debug && res.RequestStats != nil {
		fmt.Fprintln(stdout, render.RequestStats(*res.RequestStats))
	}
	if err := render.Write(stdout, res, render.Options{Debug: inv.debug, SelectionHint: selectionHint}); err != nil {
		log.WithError(err).Error("Failed to write result")
		return 1
	}
	return 0
}

// reportError prints rejected requests as is and hides internal detail
// unless debugging.
func reportError(stderr io.Writer, log *logrus.Logger, err error, debug bool) int {
	if analysis.IsConfigurationError(err) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	log.WithError(err).Debug("Analysis failed")
	if debug {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	} else {
		fmt.Fprintln(stderr, "Error: internal error (re-run with --debug for details)")
	}
	return 1
}
