package multi

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// Ensure MultiCache implements interfaces.LevelAwareCache
var _ interfaces.LevelAwareCache = (*MultiCache)(nil)

// MultiCache tries an ordered list of cache tiers, L1 first
type MultiCache struct {
	caches            []interfaces.Cache
	logger            *zap.Logger
	enablePropagation bool
}

// NewMultiCache creates a new MultiCache instance with provided cache implementations
func NewMultiCache(caches []interfaces.Cache, logger *zap.Logger, enablePropagation bool) interfaces.LevelAwareCache {
	return &MultiCache{
		caches:            caches,
		logger:            logger,
		enablePropagation: enablePropagation,
	}
}

// levelOf names the tier at index i
func levelOf(i int) models.CacheLevel {
	switch i {
	case 0:
		return models.CacheLevelL1
	case 1:
		return models.CacheLevelL2
	default:
		return models.CacheLevel(fmt.Sprintf("L%d", i+1))
	}
}

// Get retrieves a fresh value from the first tier that has it
func (mc *MultiCache) Get(key string) (*models.CacheEntry, bool) {
	result := mc.GetWithLevel(key)
	return result.Entry, result.Found
}

// GetStale retrieves a possibly stale value from the first tier that has it
func (mc *MultiCache) GetStale(key string) (*models.CacheEntry, bool) {
	result := mc.GetStaleWithLevel(key)
	return result.Entry, result.Found
}

// GetWithLevel retrieves a fresh value and reports the tier that served it.
// A hit below L1 is copied into the faster tiers when propagation is enabled.
func (mc *MultiCache) GetWithLevel(key string) interfaces.LevelResult {
	if len(mc.caches) == 0 {
		mc.logger.Warn("No caches available for get operation", zap.String("key", key))
		return interfaces.LevelResult{Level: models.CacheLevelMiss}
	}

	for i, cache := range mc.caches {
		if entry, found := cache.Get(key); found {
			if i > 0 && mc.enablePropagation {
				mc.propagate(key, entry, i)
			}
			return interfaces.LevelResult{Entry: entry, Found: true, Level: levelOf(i)}
		}
	}
	return interfaces.LevelResult{Level: models.CacheLevelMiss}
}

// GetStaleWithLevel is GetWithLevel for stale-if-error lookups. Stale entries are not propagated.
func (mc *MultiCache) GetStaleWithLevel(key string) interfaces.LevelResult {
	for i, cache := range mc.caches {
		if entry, found := cache.GetStale(key); found {
			return interfaces.LevelResult{Entry: entry, Found: true, Level: levelOf(i)}
		}
	}
	return interfaces.LevelResult{Level: models.CacheLevelMiss}
}

// propagate writes an entry found at tier upto into every faster tier with the time it has left
func (mc *MultiCache) propagate(key string, entry *models.CacheEntry, upto int) {
	now := time.Now().Unix()
	fresh := time.Duration(entry.StaleAt-now) * time.Second
	stale := time.Duration(entry.ExpiresAt-entry.StaleAt) * time.Second
	if fresh <= 0 {
		return
	}

	ttl := models.TTL{Fresh: fresh, Stale: stale}
	for i := 0; i < upto; i++ {
		mc.caches[i].Set(key, entry.Data, ttl, entry.Tags)
	}
	mc.logger.Debug("Propagated cache entry", zap.String("key", key), zap.String("from", string(levelOf(upto))))
}

// Set stores value in all tiers
func (mc *MultiCache) Set(key string, val []byte, ttl models.TTL, tags []string) {
	if len(mc.caches) == 0 {
		mc.logger.Warn("No caches available for set operation", zap.String("key", key))
		return
	}

	for _, cache := range mc.caches {
		cache.Set(key, val, ttl, tags)
	}
}

// Delete removes entry from all tiers
func (mc *MultiCache) Delete(key string) {
	for _, cache := range mc.caches {
		cache.Delete(key)
	}
}

// PurgeTags purges every tier and returns the total number of removed entries.
// Every tier is attempted even when one fails.
func (mc *MultiCache) PurgeTags(tags []string) (int, error) {
	total := 0
	var errs []error
	for i, cache := range mc.caches {
		n, err := cache.PurgeTags(tags)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", levelOf(i), err))
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// GetCacheCount returns the number of caches in the multi-cache
func (mc *MultiCache) GetCacheCount() int {
	return len(mc.caches)
}
