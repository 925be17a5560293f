// Package metrics provides Prometheus metrics for the AECR sync and scoring pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// Manager owns every collector exposed by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Sync orchestration
	syncRuns       *prometheus.CounterVec
	syncDuration   *prometheus.HistogramVec
	syncInFlight   prometheus.Gauge
	syncRejected   *prometheus.CounterVec
	accountResults *prometheus.CounterVec

	// Provider adapters
	adapterCalls   *prometheus.CounterVec
	adapterLatency *prometheus.HistogramVec
	adapterRetries *prometheus.CounterVec

	// Canonical data
	recordsUpserted *prometheus.CounterVec
	mappingErrors   *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec

	// Scoring
	comparisons     *prometheus.CounterVec
	compositeScores prometheus.Histogram
	scoreFailures   *prometheus.CounterVec

	// Detection and alerting
	anomalies *prometheus.CounterVec
	alerts    *prometheus.CounterVec

	// Job queue and workers
	queueSize     prometheus.Gauge
	queueRejected *prometheus.CounterVec
	workersActive prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "aecr",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	m.syncRuns = m.counterVec("sync_runs_total", "Completed sync runs by platform and final status", "platform", "status")
	m.syncDuration = m.histogramVec("sync_duration_milliseconds", "Wall time of a sync run in milliseconds", m.histogramBuckets, "platform")
	m.syncInFlight = m.gauge("sync_in_flight", "Sync runs currently in the Syncing state")
	m.syncRejected = m.counterVec("sync_rejected_total", "Sync requests rejected because the same key was in flight", "platform")
	m.accountResults = m.counterVec("sync_account_results_total", "Per-account sync outcomes", "platform", "outcome")

	m.adapterCalls = m.counterVec("adapter_calls_total", "Provider adapter calls by outcome", "platform", "outcome")
	m.adapterLatency = m.histogramVec("adapter_latency_milliseconds", "Provider adapter call latency in milliseconds", m.histogramBuckets, "platform")
	m.adapterRetries = m.counterVec("adapter_retries_total", "Retries of transient adapter failures", "platform", "kind")

	m.recordsUpserted = m.counterVec("records_upserted_total", "Canonical campaign records upserted", "platform")
	m.mappingErrors = m.counterVec("mapping_errors_total", "Native records skipped by the canonical mapper", "platform", "field")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Canonical store operation latency in milliseconds", m.histogramBuckets, "op")

	m.comparisons = m.counterVec("benchmark_comparisons_total", "Benchmark comparisons by KPI and outcome", "kpi", "outcome")
	m.compositeScores = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "composite_score",
		Help:        "Distribution of computed composite scores",
		Buckets:     scoreBuckets,
		ConstLabels: m.constLabels,
	})
	m.scoreFailures = m.counterVec("composite_score_unavailable_total", "Composite score requests without a score", "reason")

	m.anomalies = m.counterVec("anomalies_detected_total", "Anomalous points flagged by the detector", "metric", "direction")
	m.alerts = m.counterVec("alerts_emitted_total", "Alert events emitted by the evaluator", "trigger")

	m.queueSize = m.gauge("sync_queue_size", "Pending scheduled sync jobs")
	m.queueRejected = m.counterVec("sync_queue_rejected_total", "Sync jobs that could not be enqueued", "reason")
	m.workersActive = m.gauge("sync_workers", "Number of sync workers")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by route, method and status", "route", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets, "route", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordSyncRun records a finished sync run.
func RecordSyncRun(platform, status string, durationMs float64) {
	if !on() {
		return
	}
	globalManager.syncRuns.WithLabelValues(platform, status).Inc()
	globalManager.syncDuration.WithLabelValues(platform).Observe(durationMs)
}

// IncSyncInFlight marks a sync as started.
func IncSyncInFlight() {
	if on() {
		globalManager.syncInFlight.Inc()
	}
}

// DecSyncInFlight marks a sync as finished.
func DecSyncInFlight() {
	if on() {
		globalManager.syncInFlight.Dec()
	}
}

// RecordSyncRejected counts a request rejected by the in-flight guard.
func RecordSyncRejected(platform string) {
	if on() {
		globalManager.syncRejected.WithLabelValues(platform).Inc()
	}
}

// RecordAccountResult counts a per-account outcome (ok, auth_expired, ...).
func RecordAccountResult(platform, outcome string) {
	if on() {
		globalManager.accountResults.WithLabelValues(platform, outcome).Inc()
	}
}

// RecordAdapterCall records an adapter call outcome and latency.
func RecordAdapterCall(platform, outcome string, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.adapterCalls.WithLabelValues(platform, outcome).Inc()
	globalManager.adapterLatency.WithLabelValues(platform).Observe(latencyMs)
}

// RecordAdapterRetry counts a retry caused by a transient failure kind.
func RecordAdapterRetry(platform, kind string) {
	if on() {
		globalManager.adapterRetries.WithLabelValues(platform, kind).Inc()
	}
}

// RecordRecordsUpserted adds n upserted records.
func RecordRecordsUpserted(platform string, n int) {
	if on() && n > 0 {
		globalManager.recordsUpserted.WithLabelValues(platform).Add(float64(n))
	}
}

// RecordMappingError counts a native record rejected by the mapper.
func RecordMappingError(platform, field string) {
	if on() {
		globalManager.mappingErrors.WithLabelValues(platform, field).Inc()
	}
}

// RecordStoreLatency observes a canonical store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	if on() {
		globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

// RecordComparison counts a benchmark comparison outcome.
func RecordComparison(kpi, outcome string) {
	if on() {
		globalManager.comparisons.WithLabelValues(kpi, outcome).Inc()
	}
}

// RecordCompositeScore observes a computed composite score.
func RecordCompositeScore(score float64) {
	if on() {
		globalManager.compositeScores.Observe(score)
	}
}

// RecordScoreUnavailable counts a request that ended without a score.
func RecordScoreUnavailable(reason string) {
	if on() {
		globalManager.scoreFailures.WithLabelValues(reason).Inc()
	}
}

// RecordAnomaly counts a flagged point.
func RecordAnomaly(metric, direction string) {
	if on() {
		globalManager.anomalies.WithLabelValues(metric, direction).Inc()
	}
}

// RecordAlert counts an emitted alert.
func RecordAlert(trigger string) {
	if on() {
		globalManager.alerts.WithLabelValues(trigger).Inc()
	}
}

// UpdateQueueSize sets the pending job gauge.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// RecordQueueRejected counts a job the queue refused.
func RecordQueueRejected(reason string) {
	if on() {
		globalManager.queueRejected.WithLabelValues(reason).Inc()
	}
}

// UpdateWorkerCount sets the worker gauge.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workersActive.Set(float64(count))
	}
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(route, method, statusCode string, durationMs float64) {
	if !on() {
		return
	}
	globalManager.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(durationMs)
}

// RecordError counts an error by component and type.
func RecordError(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}
