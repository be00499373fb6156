// Package metrics provides Prometheus metrics for the ranking service.
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

	// Recompute cycle metrics
	recomputeCycles   prometheus.Counter
	recomputeFailures prometheus.Counter
	recomputeDuration prometheus.Histogram
	lastRecomputeUnix prometheus.Gauge
	singleRecomputes  prometheus.Counter
	ratingFallbacks   prometheus.Counter
	trackedPlayers    prometheus.Gauge

	// Cache metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors prometheus.Counter

	// Distribution metrics
	connectionsTotal    prometheus.Counter
	connectionsCurrent  prometheus.Gauge
	connectionsPeak     prometheus.Gauge
	connectionsRejected prometheus.Counter
	messagesSent        *prometheus.CounterVec
	deliveryErrors      prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rankd",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.recomputeCycles = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recompute_cycles_total",
		Help:      "Total number of completed global recompute cycles",
	})

	m.recomputeFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recompute_failures_total",
		Help:      "Total number of recompute cycles that failed and kept the previous snapshot",
	})

	m.recomputeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recompute_duration_milliseconds",
		Help:      "Histogram of full recompute cycle duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.lastRecomputeUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_recompute_timestamp_seconds",
		Help:      "Unix timestamp of the last successful snapshot swap",
	})

	m.singleRecomputes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "single_recomputes_total",
		Help:      "Total number of on-demand single-player recomputes",
	})

	m.ratingFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_fallbacks_total",
		Help:      "Total number of per-player computations that fell back to defaults",
	})

	m.trackedPlayers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_players",
		Help:      "Number of players in the current ranking snapshot",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Total number of snapshot cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Total number of snapshot cache misses",
	})

	m.cacheErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_errors_total",
		Help:      "Total number of cache read/write errors (treated as misses)",
	})

	m.connectionsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connections_total",
		Help:      "Total number of accepted client connections",
	})

	m.connectionsCurrent = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connections_current",
		Help:      "Current number of live client connections",
	})

	m.connectionsPeak = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connections_peak",
		Help:      "High-water mark of concurrent client connections",
	})

	m.connectionsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connections_rejected_total",
		Help:      "Total number of connections rejected by the concurrency ceiling",
	})

	m.messagesSent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "messages_sent_total",
		Help:      "Total number of messages delivered to clients, by message type",
	}, []string{"type"})

	m.deliveryErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_errors_total",
		Help:      "Total number of failed sends that dropped a connection",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current allocated heap memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	})
}

// GetRegistry returns the custom Prometheus registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers backed by the global manager.

// RecordRecomputeCycle counts a completed recompute cycle.
func RecordRecomputeCycle() { globalManager.recomputeCycles.Inc() }

// RecordRecomputeFailure counts a failed recompute cycle.
func RecordRecomputeFailure() { globalManager.recomputeFailures.Inc() }

// ObserveRecomputeDuration records the duration of a recompute cycle in milliseconds.
func ObserveRecomputeDuration(ms float64) { globalManager.recomputeDuration.Observe(ms) }

// SetLastRecompute records the unix timestamp of the last snapshot swap.
func SetLastRecompute(unixSeconds float64) { globalManager.lastRecomputeUnix.Set(unixSeconds) }

// RecordSingleRecompute counts an on-demand single-player recompute.
func RecordSingleRecompute() { globalManager.singleRecomputes.Inc() }

// RecordRatingFallback counts a per-player computation that degraded to defaults.
func RecordRatingFallback() { globalManager.ratingFallbacks.Inc() }

// UpdateTrackedPlayers sets the number of players in the current snapshot.
func UpdateTrackedPlayers(n int) { globalManager.trackedPlayers.Set(float64(n)) }

// RecordCacheHit counts a cache hit.
func RecordCacheHit() { globalManager.cacheHits.Inc() }

// RecordCacheMiss counts a cache miss.
func RecordCacheMiss() { globalManager.cacheMisses.Inc() }

// RecordCacheError counts a cache error.
func RecordCacheError() { globalManager.cacheErrors.Inc() }

// RecordConnection counts an accepted connection.
func RecordConnection() { globalManager.connectionsTotal.Inc() }

// RecordRejectedConnection counts a connection rejected by a ceiling.
func RecordRejectedConnection() { globalManager.connectionsRejected.Inc() }

// UpdateCurrentConnections sets the live connection gauge.
func UpdateCurrentConnections(n int) { globalManager.connectionsCurrent.Set(float64(n)) }

// UpdatePeakConnections sets the connection high-water mark gauge.
func UpdatePeakConnections(n int) { globalManager.connectionsPeak.Set(float64(n)) }

// RecordMessageSent counts a delivered message by type.
func RecordMessageSent(messageType string) {
	globalManager.messagesSent.WithLabelValues(messageType).Inc()
}

// RecordDeliveryError counts a failed send.
func RecordDeliveryError() { globalManager.deliveryErrors.Inc() }

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// UpdateSystemMemoryUsage sets the allocated heap memory gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutineCount.Set(float64(n)) }
