package interfaces

import "context"

//go:generate mockgen -package=mock -source=purger.go -destination=mock/purger.go

// TagPurger removes server-side cache entries by invalidation tag
type TagPurger interface {
	PurgeTags(ctx context.Context, tags []string) (int, error)
}
