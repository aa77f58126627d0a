package refresh

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// TagRevalidator invalidates tags and waits for the triggered refetches
type TagRevalidator interface {
	RevalidateTags(ctx context.Context, tags []string) error
}

// InvalidateCategories builds a RefreshFunc revalidating the tags of each category concurrently
func InvalidateCategories(store TagRevalidator, registry interfaces.PolicyRegistry, categories []models.Category) RefreshFunc {
	return func(ctx context.Context) error {
		policies := make([]models.CachePolicy, 0, len(categories))
		for _, category := range categories {
			policy, err := registry.PolicyFor(category)
			if err != nil {
				return fmt.Errorf("failed to resolve refresh category: %w", err)
			}
			policies = append(policies, policy)
		}

		g, ctx := errgroup.WithContext(ctx)
		for _, policy := range policies {
			category, tags := policy.Category, policy.InvalidationTags
			g.Go(func() error {
				if err := store.RevalidateTags(ctx, tags); err != nil {
					return fmt.Errorf("refresh %s: %w", category, err)
				}
				return nil
			})
		}
		return g.Wait()
	}
}
