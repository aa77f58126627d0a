package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Edge request/hit/miss counters, labelled by data category
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total number of edge cache requests",
		},
		[]string{"category"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of edge cache hits",
		},
		[]string{"category", "level"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of edge cache misses",
		},
		[]string{"category"},
	)

	CacheStaleServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_stale_served_total",
			Help: "Total number of stale edge entries served after an upstream failure",
		},
		[]string{"category"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of edge cache errors",
		},
		[]string{"level", "kind"},
	)

	CachePurgedKeys = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_purged_keys_total",
			Help: "Total number of edge entries removed by tag invalidation",
		},
		[]string{"tag"},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Duration of edge cache operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "level"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of statistics backend requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category", "status"},
	)

	// L1 capacity metrics
	CacheCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_capacity_bytes",
			Help: "L1 cache capacity in bytes",
		},
		[]string{"level"},
	)

	CacheUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_used_bytes",
			Help: "L1 cache used space in bytes",
		},
		[]string{"level"},
	)

	CacheKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_keys",
			Help: "Number of keys held by a cache level",
		},
		[]string{"level"},
	)

	// Client cache mirrors of the collector counters
	ClientOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_cache_outcomes_total",
			Help: "Client cache resolutions by outcome",
		},
		[]string{"category", "outcome"},
	)

	ClientInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_cache_invalidations_total",
			Help: "Client cache invalidations by category",
		},
		[]string{"category"},
	)

	ClientLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_cache_latency_seconds",
			Help:    "Client cache resolution latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	ClientSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "client_cache_size_bytes",
			Help: "Client cache payload bytes by category",
		},
		[]string{"category"},
	)

	ClientFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_cache_fetch_duration_seconds",
			Help:    "Duration of client cache network fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category", "result"},
	)
)

// RecordCacheRequest records an edge request
func RecordCacheRequest(category string) {
	CacheRequests.WithLabelValues(category).Inc()
}

// RecordCacheHit records an edge hit at level
func RecordCacheHit(category, level string) {
	CacheHits.WithLabelValues(category, level).Inc()
}

// RecordCacheMiss records an edge miss
func RecordCacheMiss(category string) {
	CacheMisses.WithLabelValues(category).Inc()
}

// RecordStaleServed records a stale-if-error response
func RecordStaleServed(category string) {
	CacheStaleServed.WithLabelValues(category).Inc()
}

// RecordCacheError records a cache error with level and kind
func RecordCacheError(level, kind string) {
	CacheErrors.WithLabelValues(level, kind).Inc()
}

// RecordPurgedKeys records keys removed for an invalidation tag
func RecordPurgedKeys(tag string, count int) {
	CachePurgedKeys.WithLabelValues(tag).Add(float64(count))
}

// RecordUpstreamDuration records a backend request
func RecordUpstreamDuration(category, status string, d time.Duration) {
	UpstreamDuration.WithLabelValues(category, status).Observe(d.Seconds())
}

// UpdateL1CacheCapacity updates L1 cache capacity metrics
func UpdateL1CacheCapacity(capacity, used int64) {
	CacheCapacity.WithLabelValues("l1").Set(float64(capacity))
	CacheUsed.WithLabelValues("l1").Set(float64(used))
}

// UpdateCacheKeys updates the number of keys in a cache level
func UpdateCacheKeys(level string, count int64) {
	CacheKeys.WithLabelValues(level).Set(float64(count))
}

// TimeCacheOperation returns a timer function for measuring a cache operation
func TimeCacheOperation(operation, level string) func() {
	timer := prometheus.NewTimer(CacheOperationDuration.WithLabelValues(operation, level))
	return func() {
		timer.ObserveDuration()
	}
}

// RecordClientFetch records a client cache network fetch
func RecordClientFetch(category, result string, d time.Duration) {
	ClientFetchDuration.WithLabelValues(category, result).Observe(d.Seconds())
}
