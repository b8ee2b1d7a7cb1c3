// Command polysignal-server serves market analyses over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/alerts"
	"github.com/liamashdown/polysignal/internal/app"
	"github.com/liamashdown/polysignal/internal/cache"
	"github.com/liamashdown/polysignal/internal/config"
	"github.com/liamashdown/polysignal/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting polysignal server...")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}

	log.WithFields(logrus.Fields{
		"environment":   cfg.Environment,
		"cache_backend": cfg.Cache.Backend,
		"cache_enabled": cfg.Cache.Enabled,
		"ledger_auth":   cfg.Ledger.AuthMode,
		"alert_mode":    cfg.Alerts.Mode,
		"port":          cfg.Server.Port,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One store is shared by every request
	var store cache.Store
	if cfg.Cache.Enabled {
		store, err = cache.Open(ctx, cfg.Cache, "", log)
		if err != nil {
			log.WithError(err).Fatal("Failed to open cache")
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.WithError(err).Warn("Failed to close cache")
			}
		}()
		log.WithField("backend", cfg.Cache.Backend).Info("Cache opened")
	}

	sender := alerts.NewSender(cfg, log)
	log.WithField("alert_mode", cfg.Alerts.Mode).Info("Alert sender initialized")

	runner := app.NewRunner(cfg, store, log)
	srv := server.New(cfg, runner, sender, log)

	scheduler := server.NewScheduler(log)
	if store != nil && cfg.Cache.PruneSchedule != "" {
		if err := scheduler.AddJob(cfg.Cache.PruneSchedule, server.NewPruneJob(store, log)); err != nil {
			log.WithError(err).Fatal("Failed to schedule cache pruning")
		}
	}
	scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	srv.SetReady(true)

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shut down HTTP server")
	}
	scheduler.Stop()
	log.Info("Graceful shutdown complete")
}
