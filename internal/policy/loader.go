package policy

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"go-stats-cache/internal/models"
)

// LoadRegistry reads policy and route overrides from a YAML file and merges
// them over the defaults. An empty path yields the default registry.
func LoadRegistry(path string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		logger.Info("No cache policies file configured, using defaults")
		return NewDefaultRegistry(logger), nil
	}

	logger.Info("Loading cache policies", zap.String("path", path))

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache policies file: %w", err)
	}
	defer file.Close()

	var cfg PoliciesConfig
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode YAML cache policies: %w", err)
	}

	policies, routes, err := merge(&cfg)
	if err != nil {
		return nil, fmt.Errorf("cache policies validation failed: %w", err)
	}

	registry, err := NewRegistry(policies, routes, logger)
	if err != nil {
		return nil, fmt.Errorf("cache policies validation failed: %w", err)
	}

	logger.Info("Cache policies loaded",
		zap.Int("overrides", len(cfg.Policies)),
		zap.Int("routes", len(routes)),
		zap.Strings("tags", registry.KnownTags()))

	return registry, nil
}

// merge replaces default policies per category and adds route overrides
func merge(cfg *PoliciesConfig) ([]models.CachePolicy, map[string]models.Category, error) {
	defaults := DefaultPolicies()
	index := make(map[models.Category]int, len(defaults))
	for i, p := range defaults {
		index[p.Category] = i
	}

	seen := make(map[models.Category]bool, len(cfg.Policies))
	for _, p := range cfg.Policies {
		if p.Category == "" {
			return nil, nil, fmt.Errorf("policy without category")
		}
		if seen[p.Category] {
			return nil, nil, fmt.Errorf("duplicate policy for category '%s'", p.Category)
		}
		seen[p.Category] = true
		defaults[index[p.Category]] = p
	}

	routes := DefaultRoutes()
	for prefix, category := range cfg.Routes {
		routes[prefix] = category
	}
	return defaults, routes, nil
}
