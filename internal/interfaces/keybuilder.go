package interfaces

import "go-stats-cache/internal/models"

// KeyCodec canonizes (endpoint, params) pairs into deterministic cache keys
type KeyCodec interface {
	Encode(endpoint string, params map[string]any) (models.CacheKey, error)
	EncodeBatch(endpoint string, paramSets []map[string]any) ([]models.CacheKey, error)
	// Decode recovers the endpoint and params of a key built by Encode
	Decode(key models.CacheKey) (endpoint string, params map[string]any, err error)
}
