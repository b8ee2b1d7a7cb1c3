package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polysignal/internal/alerts"
	"github.com/liamashdown/polysignal/internal/analysis"
	"github.com/liamashdown/polysignal/internal/metrics"
	"github.com/liamashdown/polysignal/internal/render"
)

const selectionHint = "Re-run with market_index=<N> (or all=true)."

const notifyTimeout = 15 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	metrics.RecordHealthCheck(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := s.ready.Load()
	metrics.RecordHealthCheck(ready)
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "service": ServiceName})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnalyzeQuery(r.URL.Query(), s.defaults)
	if err != nil {
		s.writeError(w, err, false)
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), q.URL, q.options(s.defaults))
	if err != nil {
		s.log.WithError(err).WithField("reference", q.URL).Warn("Analysis failed")
		s.writeError(w, err, q.Debug)
		return
	}

	s.notify(res)

	if q.Format == "text" {
		body := render.Text(res, render.Options{Debug: q.Debug, SelectionHint: selectionHint})
		if q.Debug && res.RequestStats != nil {
			body += "\n" + render.RequestStats(*res.RequestStats)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// notify sends reports without tying them to the request's lifetime
func (s *Server) notify(res *analysis.Result) {
	if s.sender == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := alerts.Notify(ctx, s.sender, res, s.env); err != nil {
		s.log.WithError(err).WithField("analysis_id", res.ID).Warn("Failed to send report")
	}
}

// writeError maps rejected requests to 400 or 404. Anything else is a 500
// whose message is only revealed when detail is set.
func (s *Server) writeError(w http.ResponseWriter, err error, detail bool) {
	status := http.StatusInternalServerError
	msg := "Internal error"
	switch {
	case errors.Is(err, analysis.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case analysis.IsConfigurationError(err):
		status, msg = http.StatusBadRequest, err.Error()
	case detail:
		msg = err.Error()
	}
	if status == http.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{"status": status}).WithError(err).Error("Internal error")
	}
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
