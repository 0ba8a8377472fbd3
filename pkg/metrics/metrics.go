// Package metrics defines the Prometheus metric collectors used across the
// engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	RetrievalQueriesTotal *prometheus.CounterVec
	RetrievalLatency      *prometheus.HistogramVec
	RetrievalResultsCount prometheus.Histogram
	DenseFallbacksTotal   *prometheus.CounterVec
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	EmbeddingCallsTotal   *prometheus.CounterVec
	IndexRebuildsTotal    *prometheus.CounterVec
	IndexChunks           prometheus.Gauge
	IndexGeneration       prometheus.Gauge
	SessionTransitions    *prometheus.CounterVec
	CommandsParsedTotal   *prometheus.CounterVec
	RPCRequestsTotal      *prometheus.CounterVec
	CircuitBreakerState   *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide Metrics, registering them with the
// default Prometheus registry on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates all collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RetrievalQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etp_retrieval_queries_total",
				Help: "Retrieval queries by mode (hybrid, lexical) and result type (hit, miss, empty, error).",
			},
			[]string{"mode", "result_type"},
		),
		RetrievalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "etp_retrieval_latency_seconds",
				Help:    "Retrieval latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"cache_status"},
		),
		RetrievalResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "etp_retrieval_results_count",
				Help:    "Number of results returned per retrieval.",
				Buckets: []float64{0, 1, 3, 5, 10, 25, 50},
			},
		),
		DenseFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etp_dense_fallbacks_total",
				Help: "Retrievals served lexical-only, by reason (unavailable, error, timeout, circuit_open).",
			},
			[]string{"reason"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "etp_retrieval_cache_hits_total",
				Help: "Total number of retrieval cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "etp_retrieval_cache_misses_total",
				Help: "Total number of retrieval cache misses.",
			},
		),
		EmbeddingCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etp_embedding_calls_total",
				Help: "Embedding backend calls by status.",
			},
			[]string{"status"},
		),
		IndexRebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etp_index_rebuilds_total",
				Help: "Index rebuilds and reloads by operation and status.",
			},
			[]string{"operation", "status"},
		),
		IndexChunks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "etp_index_chunks",
				Help: "Number of chunks in the active index snapshot.",
			},
		),
		IndexGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "etp_index_generation",
				Help: "Generation number of the active index snapshot.",
			},
		),
		SessionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etp_session_transitions_total",
				Help: "Session operations by operation and outcome code.",
			},
			[]string{"operation", "outcome"},
		),
		CommandsParsedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etp_commands_parsed_total",
				Help: "Review commands parsed by kind.",
			},
			[]string{"kind"},
		),
		RPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etp_rpc_requests_total",
				Help: "Session RPC requests by method and outcome code.",
			},
			[]string{"method", "outcome"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "etp_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.RetrievalQueriesTotal,
			m.RetrievalLatency,
			m.RetrievalResultsCount,
			m.DenseFallbacksTotal,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.EmbeddingCallsTotal,
			m.IndexRebuildsTotal,
			m.IndexChunks,
			m.IndexGeneration,
			m.SessionTransitions,
			m.CommandsParsedTotal,
			m.RPCRequestsTotal,
			m.CircuitBreakerState,
		)
	}

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
