// Package metrics provides Prometheus metrics for the tackle feature service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Feature extraction
	eventsExtracted    prometheus.Counter
	eventsDuplicate    prometheus.Counter
	extractionFailures *prometheus.CounterVec
	extractionLatency  prometheus.Histogram
	blockersCounted    prometheus.Histogram

	// Snapshot index
	snapshotGroups            prometheus.Gauge
	snapshotRows              prometheus.Gauge
	repositoryShardCount      prometheus.Gauge
	repositoryRecordsPerShard *prometheus.GaugeVec
	repositoryLoadLatency     prometheus.Histogram
	repositoryQueryLatency    prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Sinks and play feeds
	sinkWrites      *prometheus.CounterVec
	sinkErrors      *prometheus.CounterVec
	playFeedsServed prometheus.Counter
	playFramesSent  prometheus.Counter
	playLoadLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "tackle",
		subsystem:        "features",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.eventsExtracted = m.counter("events_extracted_total", "Total number of tackle events with a computed feature vector")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Total number of duplicate tackle events skipped")
	m.extractionFailures = m.counterVec("extraction_failures_total", "Failed tackle events by reason", "reason")
	m.extractionLatency = m.histogram("extraction_latency_milliseconds", "Feature extraction latency per event in milliseconds", m.histogramBuckets)
	m.blockersCounted = m.histogram("blockers_between", "Distribution of offensive players between tackler and ball carrier",
		[]float64{0, 1, 2, 3, 4, 5, 7, 10})

	m.snapshotGroups = m.gauge("snapshot_groups", "Number of (game, play, frame) groups in the snapshot index")
	m.snapshotRows = m.gauge("snapshot_rows", "Number of tracking rows in the snapshot index")
	m.repositoryShardCount = m.gauge("repository_shard_count", "Number of shards in the snapshot index")
	m.repositoryRecordsPerShard = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("repository_groups_per_shard"),
		Help: "Number of snapshot groups per shard", ConstLabels: m.customLabels,
	}, []string{"shard_id"})
	m.repositoryLoadLatency = m.histogram("repository_load_latency_milliseconds", "Snapshot index build latency in milliseconds",
		[]float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 30000})
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Snapshot group lookup latency in milliseconds",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10})

	m.queueSize = m.gauge("queue_size", "Current number of queued tackle events")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the event queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (0-1)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of enqueue operations")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of dequeue operations")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueue operations")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})

	m.workerCount = m.gauge("worker_count", "Configured number of extraction workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of running extraction workers")
	m.workerMessagesPerSecond = m.gauge("worker_events_per_second", "Events processed per second across the pool")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "End-to-end worker latency per event in milliseconds", m.histogramBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of worker errors")

	m.sinkWrites = m.counterVec("sink_writes_total", "Feature vectors written per sink", "sink")
	m.sinkErrors = m.counterVec("sink_errors_total", "Failed writes per sink", "sink")
	m.playFeedsServed = m.counter("play_feeds_total", "Total number of play feeds built")
	m.playFramesSent = m.counter("play_frames_streamed_total", "Total number of frames streamed to clients")
	m.playLoadLatency = m.histogram("play_load_latency_milliseconds", "Weekly tracking play load latency in milliseconds",
		[]float64{10, 50, 100, 500, 1000, 5000, 10000})

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("error_latency_milliseconds"),
		Help: "Latency of operations that failed", ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordEventExtracted increments the extracted events counter.
func RecordEventExtracted() {
	globalManager.eventsExtracted.Inc()
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordExtractionFailure counts a failed event under reason.
func RecordExtractionFailure(reason string) {
	globalManager.extractionFailures.WithLabelValues(reason).Inc()
}

// RecordExtractionLatency records extraction latency in milliseconds.
func RecordExtractionLatency(latencyMs float64) {
	globalManager.extractionLatency.Observe(latencyMs)
}

// RecordBlockersBetween observes one blocker count.
func RecordBlockersBetween(count int) {
	globalManager.blockersCounted.Observe(float64(count))
}

// Snapshot index.

// UpdateSnapshotGroups sets the number of indexed snapshot groups.
func UpdateSnapshotGroups(count int) {
	globalManager.snapshotGroups.Set(float64(count))
}

// UpdateSnapshotRows sets the number of indexed tracking rows.
func UpdateSnapshotRows(count int) {
	globalManager.snapshotRows.Set(float64(count))
}

// UpdateRepositoryShardCount sets the number of index shards.
func UpdateRepositoryShardCount(count int) {
	globalManager.repositoryShardCount.Set(float64(count))
}

// UpdateRepositoryRecordsPerShard sets the number of groups held by a shard.
func UpdateRepositoryRecordsPerShard(shardID string, count int) {
	globalManager.repositoryRecordsPerShard.WithLabelValues(shardID).Set(float64(count))
}

// RecordRepositoryLoadLatency records how long an index build took.
func RecordRepositoryLoadLatency(latencyMs float64) {
	globalManager.repositoryLoadLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records a group lookup latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Workers.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the pool throughput.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Sinks and play feeds.

// RecordSinkWrite counts one vector written by sink.
func RecordSinkWrite(sink string) {
	globalManager.sinkWrites.WithLabelValues(sink).Inc()
}

// RecordSinkError counts one failed write by sink.
func RecordSinkError(sink string) {
	globalManager.sinkErrors.WithLabelValues(sink).Inc()
}

// RecordPlayFeedServed counts one built play feed.
func RecordPlayFeedServed() {
	globalManager.playFeedsServed.Inc()
}

// RecordPlayFrameStreamed counts one frame pushed over a stream.
func RecordPlayFrameStreamed() {
	globalManager.playFramesSent.Inc()
}

// RecordPlayLoadLatency records how long loading a play from disk took.
func RecordPlayLoadLatency(latencyMs float64) {
	globalManager.playLoadLatency.Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
