// Package metrics provides Prometheus metrics for the pulse scoring service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scoring
	resultsScored *prometheus.CounterVec // by normalization reference
	scoringErrors prometheus.Counter
	transitions   *prometheus.CounterVec // attempt status changes

	// Aggregation
	capacityRecomputes      prometheus.Counter
	capacityRecomputeMillis prometheus.Histogram

	// Leaderboards
	leaderboardComputations *prometheus.CounterVec // by mode
	leaderboardMillis       prometheus.Histogram
	snapshotsMaterialized   prometheus.Gauge
	snapshotSinkErrors      *prometheus.CounterVec

	// Ingest pipeline
	eventsIngested         *prometheus.CounterVec
	eventsDuplicate        prometheus.Counter
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram
	workerCount            prometheus.Gauge
	workerActive           prometheus.Gauge
	workerErrors           prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

var (
	globalMu       sync.RWMutex               //nolint:gochecknoglobals // singleton metrics manager
	globalManager  *Manager                   //nolint:gochecknoglobals // singleton metrics manager
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out
)

func init() { //nolint:gochecknoinits // global metrics are usable before Init
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init replaces the global manager's settings. Metrics are re-registered on
// a fresh custom registry, so it is meant to be called once at startup.
func Init(opts ...Option) {
	reg := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(reg))...)

	globalMu.Lock()
	defer globalMu.Unlock()
	customRegistry = reg
	globalManager = m
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pulse",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		enabled:          true,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.resultsScored = auto.NewCounterVec(m.counter("results_scored_total", "Submitted results scored, by normalization reference"), []string{"reference"})
	m.scoringErrors = auto.NewCounter(m.counter("scoring_errors_total", "Submissions rejected by scoring validation"))
	m.transitions = auto.NewCounterVec(m.counter("attempt_transitions_total", "Attempt status transitions"), []string{"status"})

	m.capacityRecomputes = auto.NewCounter(m.counter("capacity_recomputes_total", "Capacity and pulse recomputations"))
	m.capacityRecomputeMillis = auto.NewHistogram(m.histogram("capacity_recompute_duration_milliseconds", "Capacity and pulse recompute latency"))

	m.leaderboardComputations = auto.NewCounterVec(m.counter("leaderboard_computations_total", "Leaderboards computed, by mode"), []string{"mode"})
	m.leaderboardMillis = auto.NewHistogram(m.histogram("leaderboard_compute_duration_milliseconds", "Leaderboard computation latency"))
	m.snapshotsMaterialized = auto.NewGauge(m.gauge("snapshots_materialized", "Leaderboard snapshots produced by the last full recompute"))
	m.snapshotSinkErrors = auto.NewCounterVec(m.counter("snapshot_sink_errors_total", "Failed snapshot exports, by sink"), []string{"sink"})

	m.eventsIngested = auto.NewCounterVec(m.counter("events_ingested_total", "Ingested attempt events applied, by type"), []string{"type"})
	m.eventsDuplicate = auto.NewCounter(m.counter("events_duplicate_total", "Ingested events dropped as duplicates"))
	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Current size of the event queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum size of the event queue"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Events refused by a full or closed queue"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogram("queue_processing_latency_milliseconds", "Time from enqueue to processed"))
	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Configured event workers"))
	m.workerActive = auto.NewGauge(m.gauge("worker_active_count", "Workers currently applying an event"))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Events that failed to apply"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counter("errors_total", "Errors by component and type"), []string{"component", "type"})
}

// active returns the global manager when collection is enabled.
func active() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if !globalManager.enabled {
		return nil
	}
	return globalManager
}

// RecordResultScored counts a scored submission. reference is gym, community
// or none.
func RecordResultScored(reference string) {
	if m := active(); m != nil {
		m.resultsScored.WithLabelValues(reference).Inc()
	}
}

// RecordScoringError counts a submission that failed validation.
func RecordScoringError() {
	if m := active(); m != nil {
		m.scoringErrors.Inc()
	}
}

// RecordAttemptTransition counts an attempt moving to status.
func RecordAttemptTransition(status string) {
	if m := active(); m != nil {
		m.transitions.WithLabelValues(status).Inc()
	}
}

// RecordCapacityRecompute counts one athlete recompute and its latency.
func RecordCapacityRecompute(latencyMs float64) {
	if m := active(); m != nil {
		m.capacityRecomputes.Inc()
		m.capacityRecomputeMillis.Observe(latencyMs)
	}
}

// RecordLeaderboardComputation counts a leaderboard build. mode is
// on_demand or snapshot.
func RecordLeaderboardComputation(mode string, latencyMs float64) {
	if m := active(); m != nil {
		m.leaderboardComputations.WithLabelValues(mode).Inc()
		m.leaderboardMillis.Observe(latencyMs)
	}
}

// UpdateSnapshotCount sets the number of snapshots of the last recompute.
func UpdateSnapshotCount(n int) {
	if m := active(); m != nil {
		m.snapshotsMaterialized.Set(float64(n))
	}
}

// RecordSnapshotSinkError counts a failed export to sink.
func RecordSnapshotSinkError(sink string) {
	if m := active(); m != nil {
		m.snapshotSinkErrors.WithLabelValues(sink).Inc()
	}
}

// RecordEventIngested counts an applied event of eventType.
func RecordEventIngested(eventType string) {
	if m := active(); m != nil {
		m.eventsIngested.WithLabelValues(eventType).Inc()
	}
}

// RecordEventDuplicate counts a dropped duplicate event.
func RecordEventDuplicate() {
	if m := active(); m != nil {
		m.eventsDuplicate.Inc()
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if m := active(); m != nil {
		m.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if m := active(); m != nil {
		m.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if m := active(); m != nil {
		m.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueueError counts an event refused by the queue.
func RecordQueueEnqueueError() {
	if m := active(); m != nil {
		m.queueEnqueueErrors.Inc()
	}
}

// RecordQueueProcessingLatency records enqueue-to-processed latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	if m := active(); m != nil {
		m.queueProcessingLatency.Observe(latencyMs)
	}
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if m := active(); m != nil {
		m.workerCount.Set(float64(count))
	}
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	if m := active(); m != nil {
		m.workerActive.Set(float64(count))
	}
}

// RecordWorkerError counts an event that failed to apply.
func RecordWorkerError() {
	if m := active(); m != nil {
		m.workerErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if m := active(); m != nil {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if m := active(); m != nil {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if m := active(); m != nil {
		m.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return customRegistry
}
