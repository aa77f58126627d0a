package noop

import (
	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// Ensure NoOpCache implements interfaces.Cache
var _ interfaces.Cache = (*NoOpCache)(nil)

// NoOpCache stands in for a disabled or unreachable edge tier
type NoOpCache struct{}

// NewNoOpCache creates a new no-operation cache instance
func NewNoOpCache() interfaces.Cache {
	return &NoOpCache{}
}

// Get always returns cache miss
func (n *NoOpCache) Get(key string) (*models.CacheEntry, bool) {
	return nil, false
}

// GetStale always returns cache miss
func (n *NoOpCache) GetStale(key string) (*models.CacheEntry, bool) {
	return nil, false
}

// Set does nothing
func (n *NoOpCache) Set(key string, val []byte, ttl models.TTL, tags []string) {}

// Delete does nothing
func (n *NoOpCache) Delete(key string) {}

// PurgeTags has nothing to purge
func (n *NoOpCache) PurgeTags(tags []string) (int, error) {
	return 0, nil
}
