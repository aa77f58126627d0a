package policy

import (
	"time"

	"go-stats-cache/internal/models"
)

// DefaultPolicies returns the built-in policy table
func DefaultPolicies() []models.CachePolicy {
	return []models.CachePolicy{
		{
			Category:             models.CategoryStatic,
			MaxStaleness:         models.DurationVeryLong,
			InvalidationTags:     []string{models.TagTeams},
			StaleWhileRevalidate: 30 * models.DurationVeryLong,
			Offline:              true,
		},
		{
			Category:             models.CategorySemiStatic,
			MaxStaleness:         models.DurationLong,
			InvalidationTags:     []string{models.TagPlayers},
			StaleWhileRevalidate: models.DurationVeryLong,
			Offline:              true,
		},
		{
			Category:             models.CategoryDynamic,
			MaxStaleness:         models.DurationMedium,
			BackgroundRevalidate: true,
			InvalidationTags:     []string{models.TagGames, models.TagProjections, models.TagUserPreferences},
			RefreshInterval:      models.DurationShort,
			StaleWhileRevalidate: models.DurationLong,
			Offline:              true,
		},
		{
			Category:             models.CategoryRealTime,
			MaxStaleness:         0,
			BackgroundRevalidate: true,
			InvalidationTags:     []string{models.TagGames, models.TagProjections},
			RefreshInterval:      10 * time.Second,
			StaleWhileRevalidate: models.DurationShort,
		},
	}
}

// DefaultRoutes returns the built-in endpoint route table
func DefaultRoutes() map[string]models.Category {
	return map[string]models.Category{
		"/api/teams":            models.CategoryStatic,
		"/api/players":          models.CategorySemiStatic,
		"/api/games":            models.CategoryDynamic,
		"/api/games/today":      models.CategoryRealTime,
		"/api/projections":      models.CategoryDynamic,
		"/api/user/preferences": models.CategoryDynamic,
	}
}
