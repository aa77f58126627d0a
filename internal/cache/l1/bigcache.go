package l1

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"go-stats-cache/internal/config"
	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/metrics"
	"go-stats-cache/internal/models"
	"go-stats-cache/internal/scheduler"
)

// Ensure BigCache implements interfaces.Cache
var _ interfaces.Cache = (*BigCache)(nil)

// BigCache implements the L1 edge tier using BigCache, with an in-memory
// tag index for tag-based purges
type BigCache struct {
	cache            *bigcache.BigCache
	logger           *zap.Logger
	metricsScheduler *scheduler.Scheduler
	statsInterval    time.Duration
	maxBytes         int64

	mu      sync.Mutex
	byTag   map[string]map[string]struct{}
	keyTags map[string][]string
}

// NewBigCache creates a new BigCache instance
func NewBigCache(l1Cfg *config.L1Config, logger *zap.Logger) (interfaces.Cache, error) {
	bc := &BigCache{
		logger:        logger,
		statsInterval: l1Cfg.StatsInterval,
		maxBytes:      int64(l1Cfg.Size) * 1024 * 1024,
		byTag:         make(map[string]map[string]struct{}),
		keyTags:       make(map[string][]string),
	}

	cfg := bigcache.DefaultConfig(10 * time.Minute) // Default eviction time
	cfg.HardMaxCacheSize = l1Cfg.Size               // Size in MB
	cfg.Verbose = false
	cfg.MaxEntrySize = l1Cfg.MaxEntrySize
	if cfg.MaxEntrySize == 0 {
		cfg.MaxEntrySize = 1024 * 1024
	}
	cfg.OnRemoveWithReason = bc.onRemove

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	bc.cache = cache

	// Start periodic metrics collection
	bc.startMetricsCollection()

	return bc, nil
}

// Get retrieves a fresh entry
func (bc *BigCache) Get(key string) (*models.CacheEntry, bool) {
	entry, ok := bc.load(key)
	if !ok || !entry.IsFresh() {
		return nil, false
	}
	return entry, true
}

// GetStale retrieves an entry regardless of freshness (for stale-if-error)
func (bc *BigCache) GetStale(key string) (*models.CacheEntry, bool) {
	return bc.load(key)
}

func (bc *BigCache) load(key string) (*models.CacheEntry, bool) {
	data, err := bc.cache.Get(key)
	if err != nil {
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		bc.logger.Warn("Failed to unmarshal L1 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "decode")
		bc.Delete(key) // Remove corrupted entry
		return nil, false
	}

	// Check if entry is completely expired (beyond stale time)
	if entry.IsExpired() {
		bc.Delete(key)
		return nil, false
	}

	return &entry, true
}

// Set stores value in cache with TTL and indexes it under its tags
func (bc *BigCache) Set(key string, val []byte, ttl models.TTL, tags []string) {
	entry := models.NewCacheEntry(val, tags, ttl, time.Now())

	data, err := json.Marshal(entry)
	if err != nil {
		bc.logger.Error("Failed to marshal cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "encode")
		return
	}

	// Eviction callbacks triggered by Set take the index lock, so it is not held here
	if err := bc.cache.Set(key, data); err != nil {
		bc.logger.Error("Failed to set cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "set")
		return
	}

	bc.mu.Lock()
	bc.unindexLocked(key)
	if len(tags) > 0 {
		bc.keyTags[key] = append([]string(nil), tags...)
		for _, tag := range tags {
			keys, ok := bc.byTag[tag]
			if !ok {
				keys = make(map[string]struct{})
				bc.byTag[tag] = keys
			}
			keys[key] = struct{}{}
		}
	}
	bc.mu.Unlock()
}

// Delete removes entry from cache
func (bc *BigCache) Delete(key string) {
	_ = bc.cache.Delete(key)

	bc.mu.Lock()
	bc.unindexLocked(key)
	bc.mu.Unlock()
}

// PurgeTags removes every entry indexed under one of the tags
func (bc *BigCache) PurgeTags(tags []string) (int, error) {
	bc.mu.Lock()
	keys := make(map[string]struct{})
	for _, tag := range tags {
		for key := range bc.byTag[tag] {
			keys[key] = struct{}{}
		}
	}
	for key := range keys {
		bc.unindexLocked(key)
	}
	bc.mu.Unlock()

	for key := range keys {
		_ = bc.cache.Delete(key)
	}

	if len(keys) > 0 {
		bc.logger.Debug("Purged L1 entries", zap.Strings("tags", tags), zap.Int("count", len(keys)))
	}
	return len(keys), nil
}

// onRemove keeps the tag index in sync with BigCache's own evictions
func (bc *BigCache) onRemove(key string, _ []byte, reason bigcache.RemoveReason) {
	bc.mu.Lock()
	bc.unindexLocked(key)
	bc.mu.Unlock()

	if reason == bigcache.NoSpace {
		metrics.RecordCacheError("l1", "no_space")
	}
}

func (bc *BigCache) unindexLocked(key string) {
	for _, tag := range bc.keyTags[key] {
		if keys, ok := bc.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(bc.byTag, tag)
			}
		}
	}
	delete(bc.keyTags, key)
}

// Close closes the cache
func (bc *BigCache) Close() error {
	// Stop metrics collection
	bc.stopMetricsCollection()

	return bc.cache.Close()
}

// GetStats returns the configured hard cap and the bytes currently allocated
func (bc *BigCache) GetStats() (capacity, used int64) {
	return bc.maxBytes, int64(bc.cache.Capacity())
}

// startMetricsCollection starts periodic metrics collection
func (bc *BigCache) startMetricsCollection() {
	interval := bc.statsInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	bc.metricsScheduler = scheduler.New(interval, bc.updateMetrics)
	bc.metricsScheduler.Start()

	// Initial collection
	bc.updateMetrics()

	bc.logger.Debug("Started L1 cache metrics collection")
}

// stopMetricsCollection stops periodic metrics collection
func (bc *BigCache) stopMetricsCollection() {
	if bc.metricsScheduler != nil {
		bc.metricsScheduler.Stop()
		bc.logger.Debug("Stopped L1 cache metrics collection")
	}
}

// updateMetrics updates cache metrics
func (bc *BigCache) updateMetrics() {
	capacity, used := bc.GetStats()
	metrics.UpdateL1CacheCapacity(capacity, used)
	metrics.UpdateCacheKeys("l1", int64(bc.cache.Len()))
}
