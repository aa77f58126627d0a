package l2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"go-stats-cache/internal/config"
	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/metrics"
	"go-stats-cache/internal/models"
)

// tagKeyPrefix namespaces the sets listing the keys stored under a tag
const tagKeyPrefix = "tag:"

// Ensure KeyDBCache implements interfaces.Cache
var _ interfaces.Cache = (*KeyDBCache)(nil)

// KeyDBCache implements the L2 edge tier using Redis/KeyDB. Every tag has a
// set of the keys stored under it.
type KeyDBCache struct {
	client interfaces.KeyDbClient
	config *config.Config
	logger *zap.Logger
}

// NewKeyDBCache creates a new KeyDBCache instance with provided client
func NewKeyDBCache(cfg *config.Config, client interfaces.KeyDbClient, logger *zap.Logger) interfaces.Cache {
	return &KeyDBCache{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// TagKey returns the set key holding the members of tag
func TagKey(tag string) string {
	return tagKeyPrefix + tag
}

// Get retrieves a fresh entry
func (kc *KeyDBCache) Get(key string) (*models.CacheEntry, bool) {
	entry, ok := kc.load(key)
	if !ok || !entry.IsFresh() {
		return nil, false
	}
	return entry, true
}

// GetStale retrieves an entry regardless of freshness
func (kc *KeyDBCache) GetStale(key string) (*models.CacheEntry, bool) {
	return kc.load(key)
}

func (kc *KeyDBCache) load(key string) (*models.CacheEntry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), kc.config.GetReadTimeout())
	defer cancel()

	data, err := kc.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			kc.logger.Error("L2 cache get error", zap.String("key", key), zap.Error(err))
			metrics.RecordCacheError("l2", "get")
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		kc.logger.Error("Failed to unmarshal L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "decode")
		kc.Delete(key)
		return nil, false
	}

	// Check if entry is completely expired
	if entry.IsExpired() {
		kc.Delete(key)
		return nil, false
	}

	return &entry, true
}

// Set stores value in KeyDB cache with TTL and adds it to its tag sets
func (kc *KeyDBCache) Set(key string, val []byte, ttl models.TTL, tags []string) {
	ctx, cancel := context.WithTimeout(context.Background(), kc.config.GetSendTimeout())
	defer cancel()

	entry := models.NewCacheEntry(val, tags, ttl, time.Now())

	data, err := json.Marshal(entry)
	if err != nil {
		kc.logger.Error("Failed to marshal L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "encode")
		return
	}

	// Set with total expiration time (Fresh TTL + Stale TTL)
	totalTTL := ttl.Fresh + ttl.Stale
	if totalTTL <= 0 {
		totalTTL = kc.config.GetDefaultTTL()
	}
	if maxTTL := kc.config.GetMaxTTL(); maxTTL > 0 && totalTTL > maxTTL {
		totalTTL = maxTTL
	}

	if err := kc.client.Set(ctx, key, data, totalTTL).Err(); err != nil {
		kc.logger.Error("Failed to set L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "set")
		return
	}

	for _, tag := range tags {
		tagKey := TagKey(tag)
		if err := kc.client.SAdd(ctx, tagKey, key).Err(); err != nil {
			kc.logger.Error("Failed to index L2 cache entry", zap.String("key", key), zap.String("tag", tag), zap.Error(err))
			metrics.RecordCacheError("l2", "tag_index")
			continue
		}
		// The set outlives every member it indexes
		if err := kc.client.Expire(ctx, tagKey, kc.config.GetMaxTTL()).Err(); err != nil {
			kc.logger.Warn("Failed to refresh L2 tag set expiry", zap.String("tag", tag), zap.Error(err))
		}
	}
}

// Delete removes entry from KeyDB cache
func (kc *KeyDBCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), kc.config.GetSendTimeout())
	defer cancel()

	if err := kc.client.Del(ctx, key).Err(); err != nil {
		kc.logger.Error("Failed to delete L2 cache entry", zap.String("key", key), zap.Error(err))
	}
}

// PurgeTags deletes every key listed in the tag sets, then the sets themselves
func (kc *KeyDBCache) PurgeTags(tags []string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), kc.config.GetSendTimeout()+kc.config.GetReadTimeout())
	defer cancel()

	seen := make(map[string]struct{})
	keys := make([]string, 0)
	tagKeys := make([]string, 0, len(tags))
	for _, tag := range tags {
		tagKey := TagKey(tag)
		members, err := kc.client.SMembers(ctx, tagKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			metrics.RecordCacheError("l2", "purge")
			return 0, fmt.Errorf("failed to list L2 keys for tag '%s': %w", tag, err)
		}
		for _, member := range members {
			if _, dup := seen[member]; !dup {
				seen[member] = struct{}{}
				keys = append(keys, member)
			}
		}
		tagKeys = append(tagKeys, tagKey)
	}

	removed := 0
	if len(keys) > 0 {
		n, err := kc.client.Del(ctx, keys...).Result()
		if err != nil {
			metrics.RecordCacheError("l2", "purge")
			return 0, fmt.Errorf("failed to delete L2 keys: %w", err)
		}
		removed = int(n)
	}

	if len(tagKeys) > 0 {
		if err := kc.client.Del(ctx, tagKeys...).Err(); err != nil {
			kc.logger.Warn("Failed to delete L2 tag sets", zap.Strings("tags", tags), zap.Error(err))
		}
	}

	kc.logger.Debug("Purged L2 entries", zap.Strings("tags", tags), zap.Int("count", removed))
	return removed, nil
}

// Close closes the KeyDB connection
func (kc *KeyDBCache) Close() error {
	return kc.client.Close()
}
