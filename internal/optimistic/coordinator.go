package optimistic

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"go-stats-cache/internal/client"
	"go-stats-cache/internal/models"
)

// Ensure Coordinator can back data source mutations
var _ client.Mutator = (*Coordinator)(nil)

// Notifier propagates a committed mutation to other consumers, usually through the
// server revalidation endpoint
type Notifier interface {
	Invalidate(ctx context.Context, tags []string) (*models.InvalidationResult, error)
}

// Coordinator wraps mutations with a speculative write and a rollback on failure
type Coordinator struct {
	store    *client.Store
	notifier Notifier
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[models.CacheKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewCoordinator creates a coordinator over store. notifier may be nil.
func NewCoordinator(store *client.Store, notifier Notifier, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		notifier: notifier,
		logger:   logger,
		locks:    make(map[models.CacheKey]*keyLock),
	}
}

// Apply writes speculative into the cache, runs commit and either confirms the key with a
// refetch or restores the previous entry. A failed commit returns *models.RollbackError.
func (c *Coordinator) Apply(ctx context.Context, key models.CacheKey, policy models.CachePolicy, speculative []byte, commit client.CommitFunc) ([]byte, error) {
	unlock := c.lock(key)
	defer unlock()

	snapshot, _ := c.store.Peek(key)
	if snapshot.Category == "" {
		snapshot.Category = policy.Category
	}

	c.store.SetSpeculative(key, policy, speculative)

	result, err := commit(ctx)
	if err != nil {
		c.store.Restore(snapshot, err)
		c.logger.Warn("Optimistic update rolled back", zap.String("key", string(key)), zap.Error(err))
		return nil, &models.RollbackError{Key: key, Err: err}
	}

	c.store.InvalidateKey(key)

	if c.notifier != nil && len(policy.InvalidationTags) > 0 {
		if _, err := c.notifier.Invalidate(ctx, policy.InvalidationTags); err != nil {
			// The commit stands, other consumers converge on their next refresh
			c.logger.Warn("Failed to propagate invalidation", zap.String("key", string(key)), zap.Error(err))
		}
	}
	return result, nil
}

// lock serializes Apply calls on key
func (c *Coordinator) lock(key models.CacheKey) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}
