// Package server exposes analyses over HTTP along with health, readiness and
// metrics endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/alerts"
	"github.com/liamashdown/polysignal/internal/analysis"
	"github.com/liamashdown/polysignal/internal/config"
)

// ServiceName is reported by /api/health
const ServiceName = "polysignal"

// An analysis fans out to many remote calls, so writes get far more time
// than the health endpoints need.
const writeTimeout = 5 * time.Minute

// Analyzer runs one analysis. *app.Runner satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, reference string, opts analysis.Options) (*analysis.Result, error)
}

// Server is the HTTP API
type Server struct {
	router   *chi.Mux
	server   *http.Server
	analyzer Analyzer
	sender   alerts.Sender
	defaults analysis.Options
	env      string
	ready    atomic.Bool
	log      *logrus.Logger
}

// New builds the router. sender may be nil.
func New(cfg *config.Config, analyzer Analyzer, sender alerts.Sender, log *logrus.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		analyzer: analyzer,
		sender:   sender,
		defaults: analysis.OptionsFromConfig(cfg),
		env:      cfg.Environment,
		log:      log,
	}

	s.setupMiddleware(cfg.Server.CORSOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  15 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleAPIHealth)
		r.Get("/analyze", s.handleAnalyze)
	})
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReady flips the /ready probe
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.WithField("addr", s.server.Addr).Info("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	s.ready.Store(false)
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Info("HTTP request")
	})
}
