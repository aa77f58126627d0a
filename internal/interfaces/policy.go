package interfaces

import (
	"go-stats-cache/internal/models"
)

// PolicyRegistry maps data categories to freshness policies
type PolicyRegistry interface {
	// PolicyFor returns the policy of a category or models.ErrUnknownCategory
	PolicyFor(category models.Category) (models.CachePolicy, error)
	// CategoryFor resolves the category serving an endpoint
	CategoryFor(endpoint string) (models.Category, error)
	// KnownTags returns the sorted tag universe
	KnownTags() []string
}
