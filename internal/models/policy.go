package models

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Category represents the freshness class of a data set
type Category string

const (
	CategoryStatic     Category = "static"
	CategorySemiStatic Category = "semi_static"
	CategoryDynamic    Category = "dynamic"
	CategoryRealTime   Category = "real_time"
)

// Categories lists every known category from the least to the most volatile
var Categories = []Category{CategoryStatic, CategorySemiStatic, CategoryDynamic, CategoryRealTime}

// Cache tags used for tag-based invalidation
const (
	TagTeams           = "teams"
	TagPlayers         = "players"
	TagGames           = "games"
	TagProjections     = "projections"
	TagUserPreferences = "user-preferences"
)

// Common staleness windows
const (
	DurationShort    = time.Minute
	DurationMedium   = 5 * time.Minute
	DurationLong     = time.Hour
	DurationVeryLong = 24 * time.Hour
)

// ParseCategory validates a category name
func ParseCategory(str string) (Category, error) {
	switch Category(str) {
	case CategoryStatic, CategorySemiStatic, CategoryDynamic, CategoryRealTime:
		return Category(str), nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnknownCategory, str)
	}
}

// UnmarshalYAML implements custom YAML unmarshaling for Category
func (c *Category) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	category, err := ParseCategory(str)
	if err != nil {
		return fmt.Errorf("invalid category '%s': must be one of 'static', 'semi_static', 'dynamic', 'real_time'", str)
	}
	*c = category
	return nil
}

// CachePolicy describes how long data of a category may be served stale
// and which tags invalidate it
type CachePolicy struct {
	Category             Category      `yaml:"category" json:"category"`
	MaxStaleness         time.Duration `yaml:"max_staleness" json:"max_staleness"`
	BackgroundRevalidate bool          `yaml:"background_revalidate" json:"background_revalidate"`
	InvalidationTags     []string      `yaml:"invalidation_tags" json:"invalidation_tags"`

	// RefreshInterval is the period of background revalidation while a key has subscribers
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
	// StaleWhileRevalidate is advertised to downstream caches and bounds stale-if-error serving
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate" json:"stale_while_revalidate"`
	// Offline marks responses of this category for write-through to the offline store
	Offline bool `yaml:"offline" json:"offline"`
}

// HasTag reports whether the policy is invalidated by tag
func (p CachePolicy) HasTag(tag string) bool {
	for _, t := range p.InvalidationTags {
		if t == tag {
			return true
		}
	}
	return false
}

// MatchesAny reports whether any of the tags invalidates the policy
func (p CachePolicy) MatchesAny(tags []string) bool {
	for _, tag := range tags {
		if p.HasTag(tag) {
			return true
		}
	}
	return false
}

// IsStale reports whether data fetched at fetchedAt is too old to be served as fresh at now
func (p CachePolicy) IsStale(fetchedAt, now time.Time) bool {
	if p.MaxStaleness <= 0 {
		return true
	}
	return now.Sub(fetchedAt) >= p.MaxStaleness
}

// CacheKey is the canonical identity of an (endpoint, params) pair
type CacheKey string

// String returns the key as a plain string
func (k CacheKey) String() string {
	return string(k)
}
