package policy

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// Ensure Registry implements interfaces.PolicyRegistry
var _ interfaces.PolicyRegistry = (*Registry)(nil)

// Registry is the immutable category to policy table
type Registry struct {
	policies map[models.Category]models.CachePolicy
	routes   []Route
	tags     []string
	logger   *zap.Logger
}

// NewDefaultRegistry builds a registry from the built-in tables
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	registry, err := NewRegistry(DefaultPolicies(), DefaultRoutes(), logger)
	if err != nil {
		panic(fmt.Sprintf("invalid default policies: %v", err))
	}
	return registry
}

// NewRegistry validates the policies and routes and builds a registry.
// Every category must be present exactly once.
func NewRegistry(policies []models.CachePolicy, routes map[string]models.Category, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	table := make(map[models.Category]models.CachePolicy, len(policies))
	tagSet := make(map[string]struct{})
	for _, p := range policies {
		if _, err := models.ParseCategory(string(p.Category)); err != nil {
			return nil, err
		}
		if _, dup := table[p.Category]; dup {
			return nil, fmt.Errorf("duplicate policy for category '%s'", p.Category)
		}
		if err := validatePolicy(p); err != nil {
			return nil, fmt.Errorf("policy '%s': %w", p.Category, err)
		}
		p.InvalidationTags = append([]string(nil), p.InvalidationTags...)
		table[p.Category] = p
		for _, tag := range p.InvalidationTags {
			tagSet[tag] = struct{}{}
		}
	}

	for _, category := range models.Categories {
		if _, ok := table[category]; !ok {
			return nil, fmt.Errorf("missing policy for category '%s'", category)
		}
	}

	routeList := make([]Route, 0, len(routes))
	for prefix, category := range routes {
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("route '%s' must start with '/'", prefix)
		}
		if _, ok := table[category]; !ok {
			return nil, fmt.Errorf("route '%s': %w: '%s'", prefix, models.ErrUnknownCategory, category)
		}
		routeList = append(routeList, Route{Prefix: strings.TrimSuffix(prefix, "/"), Category: category})
	}
	// Longest prefix wins
	sort.Slice(routeList, func(i, j int) bool {
		if len(routeList[i].Prefix) != len(routeList[j].Prefix) {
			return len(routeList[i].Prefix) > len(routeList[j].Prefix)
		}
		return routeList[i].Prefix < routeList[j].Prefix
	})

	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return &Registry{
		policies: table,
		routes:   routeList,
		tags:     tags,
		logger:   logger,
	}, nil
}

func validatePolicy(p models.CachePolicy) error {
	if p.MaxStaleness < 0 {
		return fmt.Errorf("max_staleness must be non-negative, got %s", p.MaxStaleness)
	}
	if p.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval must be non-negative, got %s", p.RefreshInterval)
	}
	if p.StaleWhileRevalidate < 0 {
		return fmt.Errorf("stale_while_revalidate must be non-negative, got %s", p.StaleWhileRevalidate)
	}
	for _, tag := range p.InvalidationTags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("empty invalidation tag")
		}
	}
	return nil
}

// PolicyFor returns the policy registered for category
func (r *Registry) PolicyFor(category models.Category) (models.CachePolicy, error) {
	p, ok := r.policies[category]
	if !ok {
		return models.CachePolicy{}, fmt.Errorf("%w: '%s'", models.ErrUnknownCategory, category)
	}
	p.InvalidationTags = append([]string(nil), p.InvalidationTags...)
	return p, nil
}

// CategoryFor resolves endpoint against the route table. A route matches the
// endpoint itself and every path below it.
func (r *Registry) CategoryFor(endpoint string) (models.Category, error) {
	path := endpoint
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSuffix(path, "/")

	for _, route := range r.routes {
		if path == route.Prefix || strings.HasPrefix(path, route.Prefix+"/") {
			return route.Category, nil
		}
	}

	r.logger.Debug("No route matched endpoint", zap.String("endpoint", endpoint))
	return "", fmt.Errorf("%w: no route for endpoint '%s'", models.ErrUnknownCategory, endpoint)
}

// KnownTags returns the sorted union of every policy's invalidation tags
func (r *Registry) KnownTags() []string {
	return append([]string(nil), r.tags...)
}

// IsKnownTag reports whether tag invalidates at least one category
func (r *Registry) IsKnownTag(tag string) bool {
	i := sort.SearchStrings(r.tags, tag)
	return i < len(r.tags) && r.tags[i] == tag
}

// CategoriesForTags returns the categories invalidated by any of the tags, in
// volatility order
func (r *Registry) CategoriesForTags(tags []string) []models.Category {
	var out []models.Category
	for _, category := range models.Categories {
		if r.policies[category].MatchesAny(tags) {
			out = append(out, category)
		}
	}
	return out
}

// CacheControl renders the Cache-Control header value advertised for a policy
func CacheControl(p models.CachePolicy) string {
	if p.MaxStaleness <= 0 {
		return "no-store"
	}
	maxAge := seconds(p.MaxStaleness)
	if p.StaleWhileRevalidate <= 0 {
		return fmt.Sprintf("public, max-age=%d, s-maxage=%d", maxAge, maxAge)
	}
	return fmt.Sprintf("public, max-age=%d, s-maxage=%d, stale-while-revalidate=%d",
		maxAge, maxAge, seconds(p.StaleWhileRevalidate))
}

// Headers returns every cache header attached to responses of a policy
func Headers(p models.CachePolicy) map[string]string {
	headers := map[string]string{"Cache-Control": CacheControl(p)}
	if p.MaxStaleness > 0 {
		headers["CDN-Cache-Control"] = fmt.Sprintf("public, max-age=%d", seconds(p.MaxStaleness))
	}
	return headers
}

func seconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
