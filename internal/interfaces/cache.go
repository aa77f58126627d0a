package interfaces

import (
	"go-stats-cache/internal/models"
)

//go:generate mockgen -package=mock -source=cache.go -destination=mock/cache.go

// Cache interface defines the contract for edge cache tiers
type Cache interface {
	Get(key string) (*models.CacheEntry, bool)      // returns entry and found flag
	GetStale(key string) (*models.CacheEntry, bool) // stale-if-error, returns entry and found flag
	Set(key string, val []byte, ttl models.TTL, tags []string)
	Delete(key string)
	// PurgeTags removes every entry stored with one of the tags and returns the number removed
	PurgeTags(tags []string) (int, error)
}

// LevelResult is a lookup result annotated with the tier that produced it
type LevelResult struct {
	Entry *models.CacheEntry
	Found bool
	Level models.CacheLevel
}

// LevelAwareCache is a tiered cache that reports the level of every hit
type LevelAwareCache interface {
	Cache
	GetWithLevel(key string) LevelResult
	GetStaleWithLevel(key string) LevelResult
}
