package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// MaxLatencySamples bounds the per-category latency history
const MaxLatencySamples = 1024

// Ensure Collector implements interfaces.MetricsRecorder
var _ interfaces.MetricsRecorder = (*Collector)(nil)

// FetchMetrics is the accumulated view of one category
type FetchMetrics struct {
	Category       models.Category
	Hits           uint64
	Misses         uint64
	Invalidations  uint64
	LatencySamples []time.Duration
	SizeBytes      int64
	LastUpdated    time.Time
}

// GlobalMetrics aggregates every category
type GlobalMetrics struct {
	TotalHits          uint64
	TotalMisses        uint64
	TotalInvalidations uint64
	AverageLatency     time.Duration
	TotalSize          int64
}

// Collector accumulates client cache outcomes per category and mirrors them
// into the client_cache_* Prometheus vectors
type Collector struct {
	mu      sync.Mutex
	clock   clock.Clock
	metrics map[models.Category]*FetchMetrics

	totalLatency time.Duration
	latencyCount uint64
}

// NewCollector creates a collector with an empty record for every category
func NewCollector(clk clock.Clock) *Collector {
	if clk == nil {
		clk = clock.New()
	}
	c := &Collector{
		clock:   clk,
		metrics: make(map[models.Category]*FetchMetrics, len(models.Categories)),
	}
	now := clk.Now()
	for _, category := range models.Categories {
		c.metrics[category] = &FetchMetrics{Category: category, LastUpdated: now}
	}
	return c
}

func (c *Collector) record(category models.Category) *FetchMetrics {
	m, ok := c.metrics[category]
	if !ok {
		m = &FetchMetrics{Category: category}
		c.metrics[category] = m
	}
	m.LastUpdated = c.clock.Now()
	return m
}

// RecordOutcome records a hit or miss and its lookup latency
func (c *Collector) RecordOutcome(category models.Category, outcome models.Outcome, latency time.Duration) {
	c.mu.Lock()
	m := c.record(category)
	switch outcome {
	case models.OutcomeHit:
		m.Hits++
	default:
		m.Misses++
	}
	m.LatencySamples = append(m.LatencySamples, latency)
	if over := len(m.LatencySamples) - MaxLatencySamples; over > 0 {
		m.LatencySamples = append(m.LatencySamples[:0:0], m.LatencySamples[over:]...)
	}
	c.totalLatency += latency
	c.latencyCount++
	c.mu.Unlock()

	ClientOutcomes.WithLabelValues(string(category), string(outcome)).Inc()
	ClientLatency.WithLabelValues(string(category)).Observe(latency.Seconds())
}

// RecordInvalidation records one invalidation of category
func (c *Collector) RecordInvalidation(category models.Category) {
	c.mu.Lock()
	c.record(category).Invalidations++
	c.mu.Unlock()

	ClientInvalidations.WithLabelValues(string(category)).Inc()
}

// RecordSize sets the current payload size held for category
func (c *Collector) RecordSize(category models.Category, bytes int64) {
	c.mu.Lock()
	c.record(category).SizeBytes = bytes
	c.mu.Unlock()

	ClientSize.WithLabelValues(string(category)).Set(float64(bytes))
}

// HitRate returns hits / (hits + misses) * 100, or 0 with no requests
func (c *Collector) HitRate(category models.Category) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.metrics[category]
	if !ok {
		return 0
	}
	return hitRate(m.Hits, m.Misses)
}

// GlobalHitRate applies HitRate to the totals of every category
func (c *Collector) GlobalHitRate() float64 {
	g := c.Global()
	return hitRate(g.TotalHits, g.TotalMisses)
}

// AverageLatency returns the mean latency of every recorded outcome
func (c *Collector) AverageLatency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latencyCount == 0 {
		return 0
	}
	return c.totalLatency / time.Duration(c.latencyCount)
}

// Snapshot returns a copy of the metrics of category
func (c *Collector) Snapshot(category models.Category) (FetchMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.metrics[category]
	if !ok {
		return FetchMetrics{}, false
	}
	out := *m
	out.LatencySamples = append([]time.Duration(nil), m.LatencySamples...)
	return out, true
}

// Global returns the totals across categories
func (c *Collector) Global() GlobalMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	var g GlobalMetrics
	for _, m := range c.metrics {
		g.TotalHits += m.Hits
		g.TotalMisses += m.Misses
		g.TotalInvalidations += m.Invalidations
		g.TotalSize += m.SizeBytes
	}
	if c.latencyCount > 0 {
		g.AverageLatency = c.totalLatency / time.Duration(c.latencyCount)
	}
	return g
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
