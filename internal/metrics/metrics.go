package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysignal_api_requests_total",
			Help: "Total number of remote API requests (every attempt counts)",
		},
		[]string{"service", "endpoint", "status"}, // catalog/ledger, markets_by_slug, success/error/not_found
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polysignal_api_request_duration_seconds",
			Help:    "Duration of remote API requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25},
		},
		[]string{"service", "endpoint"},
	)

	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysignal_api_retries_total",
			Help: "Total number of retried remote API requests",
		},
		[]string{"service"},
	)

	// Response cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysignal_cache_lookups_total",
			Help: "Total number of response cache lookups",
		},
		[]string{"service", "result"}, // hit, miss, bypass
	)

	CacheQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polysignal_cache_query_duration_seconds",
			Help:    "Duration of cache backend queries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "status"},
	)

	CacheEntriesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polysignal_cache_entries_pruned_total",
			Help: "Total number of expired cache entries removed",
		},
	)

	// Analysis metrics
	WalletsEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysignal_wallets_enriched_total",
			Help: "Total number of wallets run through enrichment, by outcome",
		},
		[]string{"result"}, // qualified or a drop reason
	)

	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysignal_analyses_total",
			Help: "Total number of market analyses, by gate",
		},
		[]string{"gate"}, // none, market_closed, whale_dominance, ...
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polysignal_analysis_duration_seconds",
			Help:    "Duration of a full analyzeMarket invocation",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// Report metrics
	ReportsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysignal_reports_sent_total",
			Help: "Total number of recommendation reports sent",
		},
		[]string{"status", "type"}, // success/error, discord/log
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polysignal_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordAPIRequest records one remote request attempt
func RecordAPIRequest(service, endpoint string, duration time.Duration, status string) {
	APIRequests.WithLabelValues(service, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

// RecordRetry records a retried request
func RecordRetry(service string) {
	APIRetries.WithLabelValues(service).Inc()
}

// RecordCacheLookup records a response cache lookup
func RecordCacheLookup(service, result string) {
	CacheLookups.WithLabelValues(service, result).Inc()
}

// RecordCacheQuery records cache backend query metrics
func RecordCacheQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CacheQueryDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordCachePrune records removed cache entries
func RecordCachePrune(removed int64) {
	CacheEntriesPruned.Add(float64(removed))
}

// RecordWalletResult records a wallet as qualified or dropped
func RecordWalletResult(result string) {
	WalletsEnriched.WithLabelValues(result).Inc()
}

// RecordAnalysis records a finished analysis. An empty gate means a BUY.
func RecordAnalysis(gate string, duration time.Duration) {
	if gate == "" {
		gate = "none"
	}
	Analyses.WithLabelValues(gate).Inc()
	AnalysisDuration.Observe(duration.Seconds())
}

// RecordReport records report delivery
func RecordReport(sendStatus, reportType string) {
	ReportsSent.WithLabelValues(sendStatus, reportType).Inc()
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
