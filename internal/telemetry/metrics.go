// Package telemetry holds the prometheus counters shared by the ingestion,
// retrieval and remote-source components. A nil *Metrics is valid and
// records nothing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gitcinema"

// Outcome labels for remote requests
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeRateLimit = "rate_limit"
	OutcomeError     = "error"
)

// Metrics groups the counters of one process
type Metrics struct {
	Registry *prometheus.Registry

	remoteRequests *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	skippedFiles   *prometheus.CounterVec
	analyses       *prometheus.CounterVec
}

// NewMetrics creates the counters on a private registry so repeated
// construction (tests, multiple pipelines) never collides.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Hosting API requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Store lookups by kind (analysis, file) and result (hit, miss).",
		}, []string{"kind", "result"}),
		skippedFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_files_total",
			Help:      "Optional file fetches that failed and were left out of a result.",
		}, []string{"stage"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyze calls by result (cached, ingested, failed).",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(m.remoteRequests, m.cacheLookups, m.skippedFiles, m.analyses)
	return m
}

// RemoteRequest counts one hosting API call
func (m *Metrics) RemoteRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.remoteRequests.WithLabelValues(operation, outcome).Inc()
}

// CacheLookup counts one store lookup
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// SkippedFile counts a tolerated per-file failure
func (m *Metrics) SkippedFile(stage string) {
	if m == nil {
		return
	}
	m.skippedFiles.WithLabelValues(stage).Inc()
}

// Analysis counts the result of one analyze call
func (m *Metrics) Analysis(result string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(result).Inc()
}
