package interfaces

import (
	"context"

	"go-stats-cache/internal/models"
)

//go:generate mockgen -package=mock -source=offline.go -destination=mock/offline.go

// OfflineStore is the persisted response store consulted without connectivity
type OfflineStore interface {
	// Read returns the stored response or models.ErrNotFound
	Read(ctx context.Context, req models.OfflineRequest) (*models.OfflineResponse, error)
	Write(ctx context.Context, req models.OfflineRequest, resp models.OfflineResponse) error
}
