package revalidation

import (
	"context"
	"fmt"
	"sort"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// Gateway validates invalidation requests and purges the edge tiers by tag
type Gateway struct {
	registry interfaces.PolicyRegistry
	purger   interfaces.TagPurger
	clock    clock.Clock
	logger   *zap.Logger
}

// NewGateway creates a revalidation gateway. A nil clock uses the wall clock.
func NewGateway(registry interfaces.PolicyRegistry, purger interfaces.TagPurger, clk clock.Clock, logger *zap.Logger) *Gateway {
	if clk == nil {
		clk = clock.New()
	}
	return &Gateway{
		registry: registry,
		purger:   purger,
		clock:    clk,
		logger:   logger,
	}
}

// Revalidate purges every edge entry carrying one of the requested tags.
// Unknown tags reject the whole request with *models.InvalidTagError before anything is purged.
func (g *Gateway) Revalidate(ctx context.Context, req models.InvalidationRequest) (*models.InvalidationResult, error) {
	tags, err := g.validate(req.Tags)
	if err != nil {
		return nil, err
	}

	removed, err := g.purger.PurgeTags(ctx, tags)
	if err != nil {
		g.logger.Error("Failed to purge edge cache", zap.Strings("tags", tags), zap.Error(err))
		return nil, fmt.Errorf("failed to purge tags: %w", err)
	}

	g.logger.Info("Revalidated tags", zap.Strings("tags", tags), zap.Int("removed", removed))

	return &models.InvalidationResult{
		Revalidated: true,
		Timestamp:   g.clock.Now().UnixMilli(),
		Tags:        tags,
	}, nil
}

// validate de-duplicates tags in request order and rejects the unknown ones
func (g *Gateway) validate(tags []string) ([]string, error) {
	known := make(map[string]struct{})
	for _, tag := range g.registry.KnownTags() {
		known[tag] = struct{}{}
	}

	seen := make(map[string]struct{}, len(tags))
	unique := make([]string, 0, len(tags))
	var invalid []string
	for _, tag := range tags {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		if _, ok := known[tag]; !ok {
			invalid = append(invalid, tag)
			continue
		}
		unique = append(unique, tag)
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, &models.InvalidTagError{Tags: invalid}
	}
	return unique, nil
}
