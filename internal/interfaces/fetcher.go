package interfaces

import (
	"context"

	"go-stats-cache/internal/models"
)

//go:generate mockgen -package=mock -source=fetcher.go -destination=mock/fetcher.go

// Fetcher retrieves the value of a key from the data-fetch boundary
type Fetcher interface {
	Fetch(ctx context.Context, key models.CacheKey) (*models.FetchResult, error)
	// RequestFor returns the offline identity of the request Fetch would issue
	RequestFor(key models.CacheKey) (models.OfflineRequest, error)
}
