// Package metrics provides Prometheus metrics for the session recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Recommendation pipeline
	recommendationRequests   *prometheus.CounterVec
	recommendationLatency    *prometheus.HistogramVec
	recommendationCandidates *prometheus.HistogramVec
	ruleRemovals             *prometheus.CounterVec
	similarVisitorsFound     prometheus.Histogram

	// LLM
	llmCalls       *prometheus.CounterVec
	llmCallLatency prometheus.Histogram
	llmFallbacks   *prometheus.CounterVec

	// Caches
	cacheRequests *prometheus.CounterVec
	cacheEntries  *prometheus.GaugeVec
	cacheClears   prometheus.Counter

	// Graph store
	graphQueryLatency *prometheus.HistogramVec
	graphErrors       *prometheus.CounterVec

	// Fan-out workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sessionrec",
		subsystem:        "recommender",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	countBuckets := []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500}

	m.recommendationRequests = auto.NewCounterVec(
		m.counterOpts("requests_total", "Recommendation requests by filter strategy and outcome"),
		[]string{"strategy", "outcome"})
	m.recommendationLatency = auto.NewHistogramVec(
		m.histogramOpts("request_duration_milliseconds", "End-to-end recommendation latency", m.histogramBuckets),
		[]string{"strategy"})
	m.recommendationCandidates = auto.NewHistogramVec(
		m.histogramOpts("candidates", "Recommendations per request before and after filtering", countBuckets),
		[]string{"list"})
	m.ruleRemovals = auto.NewCounterVec(
		m.counterOpts("rule_removals_total", "Candidates removed by each rule stage"),
		[]string{"stage"})
	m.similarVisitorsFound = auto.NewHistogram(
		m.histogramOpts("similar_visitors", "Similar visitors found for new visitors", countBuckets))

	m.llmCalls = auto.NewCounterVec(
		m.counterOpts("llm_calls_total", "Calls made to the hosted model by operation and outcome"),
		[]string{"operation", "outcome"})
	m.llmCallLatency = auto.NewHistogram(
		m.histogramOpts("llm_call_duration_milliseconds", "Latency of hosted model calls", m.histogramBuckets))
	m.llmFallbacks = auto.NewCounterVec(
		m.counterOpts("llm_fallbacks_total", "Times the LLM filter returned the unfiltered list"),
		[]string{"reason"})

	m.cacheRequests = auto.NewCounterVec(
		m.counterOpts("cache_requests_total", "Cache lookups by cache and result"),
		[]string{"cache", "result"})
	m.cacheEntries = auto.NewGaugeVec(
		m.gaugeOpts("cache_entries", "Entries held per cache"),
		[]string{"cache"})
	m.cacheClears = auto.NewCounter(
		m.counterOpts("cache_clears_total", "Number of explicit cache invalidations"))

	m.graphQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("graph_query_duration_milliseconds", "Graph store query latency", m.histogramBuckets),
		[]string{"query"})
	m.graphErrors = auto.NewCounterVec(
		m.counterOpts("graph_errors_total", "Graph store query failures"),
		[]string{"query"})

	m.workerActiveCount = auto.NewGauge(
		m.gaugeOpts("worker_active_count", "Similarity workers currently running"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Time spent on one fan-out job", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(
		m.counterOpts("worker_errors_total", "Fan-out jobs that failed"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_seconds", "HTTP request duration in seconds", prometheus.DefBuckets),
		[]string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and error type"),
		[]string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordRecommendation counts a finished recommendation request and its latency.
func RecordRecommendation(strategy, outcome string, latencyMs float64) {
	globalManager.recommendationRequests.WithLabelValues(strategy, outcome).Inc()
	globalManager.recommendationLatency.WithLabelValues(strategy).Observe(latencyMs)
}

// RecordCandidates observes the size of the raw and filtered lists.
func RecordCandidates(raw, filtered int) {
	globalManager.recommendationCandidates.WithLabelValues("raw").Observe(float64(raw))
	globalManager.recommendationCandidates.WithLabelValues("filtered").Observe(float64(filtered))
}

// RecordRuleRemovals adds removed candidates for a rule stage.
func RecordRuleRemovals(stage string, removed int) {
	if removed > 0 {
		globalManager.ruleRemovals.WithLabelValues(stage).Add(float64(removed))
	}
}

// RecordSimilarVisitors observes how many similar visitors were used.
func RecordSimilarVisitors(n int) {
	globalManager.similarVisitorsFound.Observe(float64(n))
}

// RecordLLMCall counts a hosted model call.
func RecordLLMCall(operation, outcome string, latencyMs float64) {
	globalManager.llmCalls.WithLabelValues(operation, outcome).Inc()
	globalManager.llmCallLatency.Observe(latencyMs)
}

// RecordLLMFallback counts an LLM filter fallback.
func RecordLLMFallback(reason string) {
	globalManager.llmFallbacks.WithLabelValues(reason).Inc()
}

// RecordCacheHit counts a cache hit.
func RecordCacheHit(cache string) {
	globalManager.cacheRequests.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss counts a cache miss.
func RecordCacheMiss(cache string) {
	globalManager.cacheRequests.WithLabelValues(cache, "miss").Inc()
}

// UpdateCacheEntries sets the number of entries held by a cache.
func UpdateCacheEntries(cache string, n int) {
	globalManager.cacheEntries.WithLabelValues(cache).Set(float64(n))
}

// RecordCacheClear counts an explicit invalidation.
func RecordCacheClear() {
	globalManager.cacheClears.Inc()
}

// RecordGraphQuery observes a graph query latency.
func RecordGraphQuery(query string, latencyMs float64) {
	globalManager.graphQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordGraphError counts a failed graph query.
func RecordGraphError(query string) {
	globalManager.graphErrors.WithLabelValues(query).Inc()
}

// UpdateWorkerActiveCount sets the number of running fan-out workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records one fan-out job latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
