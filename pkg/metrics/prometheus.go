package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the ranking service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Skill and total lifecycle
	skillSubmissions    *prometheus.CounterVec
	skillRemovals       prometheus.Counter
	totalRecomputes     *prometheus.CounterVec
	recomputeLatency    prometheus.Histogram
	integrityRejections prometheus.Counter

	// Reconciliation
	reconcileSweeps  prometheus.Counter
	reconcileRepairs prometheus.Counter
	reconcileErrors  prometheus.Counter
	pendingUsers     prometheus.Gauge

	// Ranking index
	rankedUsers         prometheus.Gauge
	rankingQueryLatency prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "chartrank",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.skillSubmissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "skill_submissions_total",
		Help:      "Skill submissions by result",
	}, []string{"result"})
	m.skillRemovals = m.counter("skill_removals_total", "Skill records removed")
	m.totalRecomputes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "total_recomputes_total",
		Help:      "User total recomputes by trigger",
	}, []string{"trigger"})
	m.recomputeLatency = m.histogram("recompute_latency_milliseconds", "Latency of a user total recompute in milliseconds")
	m.integrityRejections = m.counter("integrity_rejections_total", "Legacy chart writes rejected for overlapping intervals")

	m.reconcileSweeps = m.counter("reconcile_sweeps_total", "Reconciliation sweeps run")
	m.reconcileRepairs = m.counter("reconcile_repairs_total", "Stale user totals repaired by reconciliation")
	m.reconcileErrors = m.counter("reconcile_errors_total", "Reconciliation repairs that failed")
	m.pendingUsers = m.gauge("reconcile_pending_users", "Users with a recompute job in flight")

	m.rankedUsers = m.gauge("ranked_users", "Users in the ranking index")
	m.rankingQueryLatency = m.histogram("ranking_query_latency_milliseconds", "Ranking index query latency in milliseconds")

	m.queueSize = m.gauge("queue_size", "Recompute jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the recompute queue")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Recompute jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Recompute jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Recompute jobs rejected by the queue")

	m.workerCount = m.gauge("worker_count", "Running recompute workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Worker jobs that failed")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Errors by component and kind",
	}, []string{"component", "kind"})
}

// RecordSkillSubmission counts a submission with its result label.
func RecordSkillSubmission(result string) {
	globalManager.skillSubmissions.WithLabelValues(result).Inc()
}

// RecordSkillRemoval counts a removed skill record.
func RecordSkillRemoval() {
	globalManager.skillRemovals.Inc()
}

// RecordTotalRecompute counts a recompute and observes its latency.
func RecordTotalRecompute(trigger string, latencyMs float64) {
	globalManager.totalRecomputes.WithLabelValues(trigger).Inc()
	globalManager.recomputeLatency.Observe(latencyMs)
}

// RecordIntegrityRejection counts a rejected legacy chart write.
func RecordIntegrityRejection() {
	globalManager.integrityRejections.Inc()
}

// RecordReconcileSweep counts a sweep.
func RecordReconcileSweep() {
	globalManager.reconcileSweeps.Inc()
}

// RecordReconcileRepair counts a repaired total.
func RecordReconcileRepair() {
	globalManager.reconcileRepairs.Inc()
}

// RecordReconcileError counts a failed repair.
func RecordReconcileError() {
	globalManager.reconcileErrors.Inc()
}

// UpdatePendingUsers sets the number of users with a job in flight.
func UpdatePendingUsers(count int64) {
	globalManager.pendingUsers.Set(float64(count))
}

// UpdateRankedUsers sets the ranking index size.
func UpdateRankedUsers(count int) {
	globalManager.rankedUsers.Set(float64(count))
}

// RecordRankingQueryLatency records a ranking index query latency.
func RecordRankingQueryLatency(latencyMs float64) {
	globalManager.rankingQueryLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the queue backlog.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker job latency.
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

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and kind labels.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
