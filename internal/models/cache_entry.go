package models

import "time"

// CacheLevel reports which edge tier served a response
type CacheLevel string

const (
	CacheLevelL1   CacheLevel = "L1"
	CacheLevelL2   CacheLevel = "L2"
	CacheLevelMiss CacheLevel = "MISS"
)

// CacheStatus reports how the edge tier resolved a request
type CacheStatus string

const (
	CacheStatusHit    CacheStatus = "HIT"
	CacheStatusMiss   CacheStatus = "MISS"
	CacheStatusStale  CacheStatus = "STALE"
	CacheStatusBypass CacheStatus = "BYPASS"
)

// TTL represents cache time-to-live configuration
type TTL struct {
	Fresh time.Duration // How long the data is considered fresh
	Stale time.Duration // How long stale data can be served (stale-if-error)
}

// CacheEntry is the record stored in the L1 and L2 edge tiers
type CacheEntry struct {
	Data      []byte   `json:"data"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt int64    `json:"created_at"`
	StaleAt   int64    `json:"stale_at"`
	ExpiresAt int64    `json:"expires_at"`
}

// NewCacheEntry builds an entry created now with the given TTL
func NewCacheEntry(data []byte, tags []string, ttl TTL, now time.Time) CacheEntry {
	created := now.Unix()
	return CacheEntry{
		Data:      data,
		Tags:      tags,
		CreatedAt: created,
		StaleAt:   created + int64(ttl.Fresh.Seconds()),
		ExpiresAt: created + int64(ttl.Fresh.Seconds()) + int64(ttl.Stale.Seconds()),
	}
}

// IsFresh reports whether the entry is still within its fresh TTL
func (e *CacheEntry) IsFresh() bool {
	return time.Now().Unix() < e.StaleAt
}

// IsExpired reports whether the entry is past its stale TTL as well
func (e *CacheEntry) IsExpired() bool {
	return time.Now().Unix() >= e.ExpiresAt
}
