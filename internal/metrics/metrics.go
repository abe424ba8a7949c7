package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Matching metrics
	MatchRequestsTotal   *prometheus.CounterVec
	MatchDurationSeconds *prometheus.HistogramVec
	MethodUsageTotal     *prometheus.CounterVec

	// Classification metrics
	ClassifyRequestsTotal *prometheus.CounterVec

	// Similarity search metrics
	SearchRequestsTotal   *prometheus.CounterVec
	SearchDurationSeconds prometheus.Histogram
	IndexedQuestions      prometheus.Gauge
	IndexBuildDuration    prometheus.Histogram

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Degradation metrics
	SemanticEnabled prometheus.Gauge

	// Embedding backend metrics
	EmbeddingRequestsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Warmup metrics
	WarmupDuration prometheus.Histogram
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// Matching metrics
		MatchRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpmatch_match_requests_total",
				Help: "Total number of knowledge-point match requests by status",
			},
			[]string{"status"}, // status: success, empty, error
		),

		MatchDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kpmatch_match_duration_seconds",
				Help:    "Knowledge-point match duration in seconds by operation",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}, // sub-ms to 1s
			},
			[]string{"operation"}, // operation: match, classify, find_similar
		),

		MethodUsageTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpmatch_method_usage_total",
				Help: "Total number of times each matching method contributed to a result",
			},
			[]string{"method"}, // method: rule_based, tfidf, semantic, ensemble
		),

		// Classification metrics
		ClassifyRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpmatch_classify_requests_total",
				Help: "Total number of subject classification requests by status",
			},
			[]string{"status"}, // status: success, unclassified, error
		),

		// Similarity search metrics
		SearchRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpmatch_search_requests_total",
				Help: "Total number of similarity search requests by status",
			},
			[]string{"status"}, // status: success, empty, not_built, error
		),

		SearchDurationSeconds: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kpmatch_search_duration_seconds",
				Help:    "Similarity search duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),

		IndexedQuestions: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "kpmatch_indexed_questions",
				Help: "Number of questions in the current similarity index",
			},
		),

		IndexBuildDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kpmatch_index_build_duration_seconds",
				Help:    "Duration of similarity index builds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),

		// Cache metrics
		CacheHitsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpmatch_cache_hits_total",
				Help: "Total number of cache hits by module",
			},
			[]string{"module"},
		),

		CacheMissesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpmatch_cache_misses_total",
				Help: "Total number of cache misses by module",
			},
			[]string{"module"},
		),

		// Degradation metrics
		SemanticEnabled: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "kpmatch_semantic_enabled",
				Help: "1 if the embedding backend is available, 0 if degraded to rule+lexical only",
			},
		),

		// Embedding backend metrics
		EmbeddingRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpmatch_embedding_requests_total",
				Help: "Total number of embedding backend calls by status",
			},
			[]string{"status"}, // status: success, error
		),

		// HTTP metrics
		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kpmatch_http_errors_total",
				Help: "Total HTTP errors by type and endpoint",
			},
			[]string{"error_type", "endpoint"}, // error_type: bad_request, not_built, internal
		),

		// Warmup metrics
		WarmupDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kpmatch_warmup_duration_seconds",
				Help:    "Total duration of engine warm-up (vectorizer fit + embedding precompute)",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
	}

	return m
}

// RecordMatch records a match request with status
func (m *Metrics) RecordMatch(status string, duration float64) {
	m.MatchRequestsTotal.WithLabelValues(status).Inc()
	m.MatchDurationSeconds.WithLabelValues("match").Observe(duration)
}

// RecordClassify records a classification request with status
func (m *Metrics) RecordClassify(status string, duration float64) {
	m.ClassifyRequestsTotal.WithLabelValues(status).Inc()
	m.MatchDurationSeconds.WithLabelValues("classify").Observe(duration)
}

// RecordSearch records a similarity search request
func (m *Metrics) RecordSearch(status string, duration float64) {
	m.SearchRequestsTotal.WithLabelValues(status).Inc()
	m.SearchDurationSeconds.Observe(duration)
}

// RecordMethodUsage records a matching method contributing to a result
func (m *Metrics) RecordMethodUsage(method string) {
	m.MethodUsageTotal.WithLabelValues(method).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(module string) {
	m.CacheHitsTotal.WithLabelValues(module).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(module string) {
	m.CacheMissesTotal.WithLabelValues(module).Inc()
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, endpoint string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordEmbeddingRequest records an embedding backend call
func (m *Metrics) RecordEmbeddingRequest(status string) {
	m.EmbeddingRequestsTotal.WithLabelValues(status).Inc()
}

// RecordIndexBuild records a completed index build
func (m *Metrics) RecordIndexBuild(indexed int, duration float64) {
	m.IndexedQuestions.Set(float64(indexed))
	m.IndexBuildDuration.Observe(duration)
}

// RecordWarmupDuration records total warm-up duration
func (m *Metrics) RecordWarmupDuration(duration float64) {
	m.WarmupDuration.Observe(duration)
}

// SetSemanticEnabled records whether the embedding backend is available
func (m *Metrics) SetSemanticEnabled(enabled bool) {
	if enabled {
		m.SemanticEnabled.Set(1)
	} else {
		m.SemanticEnabled.Set(0)
	}
}
