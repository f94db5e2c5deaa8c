// Package metrics provides Prometheus metrics for the survey pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Acquisition Metrics - Download behavior per source entry
	filesFetched  prometheus.Counter
	fetchFailures prometheus.Counter
	fetchBytes    prometheus.Counter
	fetchDuration prometheus.Histogram
	httpResponses *prometheus.CounterVec

	// Parse Metrics - Transport decoding
	filesParsed   prometheus.Counter
	parseFailures prometheus.Counter
	rowsParsed    prometheus.Counter
	parseDuration prometheus.Histogram

	// Queue Metrics - Acquisition task queue
	queueDepth    prometheus.Gauge
	queueCapacity prometheus.Gauge
	tasksEnqueued prometheus.Counter
	tasksDequeued prometheus.Counter
	enqueueErrors prometheus.Counter

	// Worker Metrics - Pool behavior
	workerCount  prometheus.Gauge
	taskDuration prometheus.Histogram
	taskErrors   prometheus.Counter

	// Assembly Metrics - Combine and join stages
	combinedRows *prometheus.GaugeVec
	joinedRows   prometheus.Gauge
	joinDuration prometheus.Histogram

	// Artifact Metrics - Persisted outputs
	artifactsWritten *prometheus.CounterVec
	artifactRows     *prometheus.GaugeVec
	persistDuration  prometheus.Histogram

	// Run Metrics - Whole pipeline executions
	runsCompleted  prometheus.Counter
	runFailures    prometheus.Counter
	entriesSkipped prometheus.Counter
	runDuration    prometheus.Histogram
	runLastUnix    prometheus.Gauge

	// HTTP Performance Metrics - Status server
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nhanes",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Acquisition Metrics - Download behavior per source entry
	m.filesFetched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "files_fetched_total",
		Help:      "Total number of source files downloaded successfully",
	})

	m.fetchFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_failures_total",
		Help:      "Total number of source downloads that failed",
	})

	m.fetchBytes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_bytes_total",
		Help:      "Total bytes downloaded from the survey origin",
	})

	m.fetchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_duration_milliseconds",
		Help:      "Histogram of per-file download duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpResponses = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "origin_responses_total",
			Help:      "Total origin responses by HTTP status code",
		},
		[]string{"status_code"},
	)

	// Parse Metrics - Transport decoding
	m.filesParsed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "files_parsed_total",
		Help:      "Total number of transport files decoded successfully",
	})

	m.parseFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "parse_failures_total",
		Help:      "Total number of transport files that failed to decode",
	})

	m.rowsParsed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_parsed_total",
		Help:      "Total rows decoded from transport files",
	})

	m.parseDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "parse_duration_milliseconds",
		Help:      "Histogram of per-file decode duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Queue Metrics - Acquisition task queue
	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_depth",
		Help:      "Current number of tasks waiting in the acquisition queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum acquisition queue capacity",
	})

	m.tasksEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tasks_enqueued_total",
		Help:      "Total number of acquisition tasks enqueued",
	})

	m.tasksDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tasks_dequeued_total",
		Help:      "Total number of acquisition tasks dequeued",
	})

	m.enqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "enqueue_errors_total",
		Help:      "Total number of enqueue errors",
	})

	// Worker Metrics - Pool behavior
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of acquisition workers",
	})

	m.taskDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_duration_milliseconds",
		Help:      "Histogram of fetch-decode-tag task duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.taskErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_errors_total",
		Help:      "Total number of acquisition tasks that ended in error",
	})

	// Assembly Metrics - Combine and join stages
	m.combinedRows = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "combined_rows",
			Help:      "Rows in the combined table of the last run, by category",
		},
		[]string{"category"},
	)

	m.joinedRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "joined_rows",
		Help:      "Rows in the merged table of the last run",
	})

	m.joinDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "join_duration_milliseconds",
		Help:      "Histogram of join stage duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Artifact Metrics - Persisted outputs
	m.artifactsWritten = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "artifacts_written_total",
			Help:      "Total artifacts written, by format",
		},
		[]string{"format"},
	)

	m.artifactRows = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "artifact_rows",
			Help:      "Rows persisted per artifact base name in the last run",
		},
		[]string{"artifact"},
	)

	m.persistDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_duration_milliseconds",
		Help:      "Histogram of artifact persist duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Run Metrics - Whole pipeline executions
	m.runsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_completed_total",
		Help:      "Total number of pipeline runs that finished",
	})

	m.runFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_failures_total",
		Help:      "Total number of pipeline runs that aborted with an error",
	})

	m.entriesSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "entries_skipped_total",
		Help:      "Total source entries skipped after fetch or parse failures",
	})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_milliseconds",
		Help:      "Histogram of whole-run duration in milliseconds",
		Buckets:   []float64{100, 500, 1000, 5000, 15000, 60000, 300000, 900000},
	})

	m.runLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_last_unix",
		Help:      "Unix timestamp of the last completed run",
	})

	// HTTP Performance Metrics - Status server
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Acquisition Metrics Functions.

// RecordFileFetched increments the fetched-files counter.
func RecordFileFetched() {
	globalManager.filesFetched.Inc()
}

// RecordFetchFailure increments the fetch failure counter.
func RecordFetchFailure() {
	globalManager.fetchFailures.Inc()
}

// RecordFetchBytes adds to the downloaded byte counter.
func RecordFetchBytes(n int64) {
	globalManager.fetchBytes.Add(float64(n))
}

// RecordFetchDuration records one download duration in milliseconds.
func RecordFetchDuration(latencyMs float64) {
	globalManager.fetchDuration.Observe(latencyMs)
}

// RecordOriginResponse counts one origin response by status code.
func RecordOriginResponse(statusCode string) {
	globalManager.httpResponses.WithLabelValues(statusCode).Inc()
}

// Parse Metrics Functions.

// RecordFileParsed increments the parsed-files counter.
func RecordFileParsed() {
	globalManager.filesParsed.Inc()
}

// RecordParseFailure increments the parse failure counter.
func RecordParseFailure() {
	globalManager.parseFailures.Inc()
}

// RecordRowsParsed adds to the decoded row counter.
func RecordRowsParsed(rows int) {
	globalManager.rowsParsed.Add(float64(rows))
}

// RecordParseDuration records one decode duration in milliseconds.
func RecordParseDuration(latencyMs float64) {
	globalManager.parseDuration.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueDepth sets the current queue depth.
func UpdateQueueDepth(depth int) {
	globalManager.queueDepth.Set(float64(depth))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordTaskEnqueued increments the enqueue counter.
func RecordTaskEnqueued() {
	globalManager.tasksEnqueued.Inc()
}

// RecordTaskDequeued increments the dequeue counter.
func RecordTaskDequeued() {
	globalManager.tasksDequeued.Inc()
}

// RecordEnqueueError increments the enqueue error counter.
func RecordEnqueueError() {
	globalManager.enqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordTaskDuration records one task duration in milliseconds.
func RecordTaskDuration(latencyMs float64) {
	globalManager.taskDuration.Observe(latencyMs)
}

// RecordTaskError increments the task error counter.
func RecordTaskError() {
	globalManager.taskErrors.Inc()
}

// Assembly Metrics Functions.

// UpdateCombinedRows sets the combined row count for a category.
func UpdateCombinedRows(category string, rows int) {
	globalManager.combinedRows.WithLabelValues(category).Set(float64(rows))
}

// UpdateJoinedRows sets the merged table row count.
func UpdateJoinedRows(rows int) {
	globalManager.joinedRows.Set(float64(rows))
}

// RecordJoinDuration records the join stage duration in milliseconds.
func RecordJoinDuration(latencyMs float64) {
	globalManager.joinDuration.Observe(latencyMs)
}

// Artifact Metrics Functions.

// RecordArtifactWritten counts one written artifact by format.
func RecordArtifactWritten(format string) {
	globalManager.artifactsWritten.WithLabelValues(format).Inc()
}

// UpdateArtifactRows sets the row count persisted under an artifact base name.
func UpdateArtifactRows(artifact string, rows int) {
	globalManager.artifactRows.WithLabelValues(artifact).Set(float64(rows))
}

// RecordPersistDuration records one persist duration in milliseconds.
func RecordPersistDuration(latencyMs float64) {
	globalManager.persistDuration.Observe(latencyMs)
}

// Run Metrics Functions.

// RecordRunCompleted increments the completed-run counter and stamps the time.
func RecordRunCompleted() {
	globalManager.runsCompleted.Inc()
	globalManager.runLastUnix.Set(float64(time.Now().Unix()))
}

// RecordRunFailure increments the failed-run counter.
func RecordRunFailure() {
	globalManager.runFailures.Inc()
}

// RecordEntrySkipped increments the skipped-entry counter.
func RecordEntrySkipped() {
	globalManager.entriesSkipped.Inc()
}

// RecordRunDuration records one run duration in milliseconds.
func RecordRunDuration(latencyMs float64) {
	globalManager.runDuration.Observe(latencyMs)
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
