package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// CommitFunc performs a mutation against the server and returns its response payload
type CommitFunc func(ctx context.Context) ([]byte, error)

// Mutator applies optimistic writes through the store
type Mutator interface {
	Apply(ctx context.Context, key models.CacheKey, policy models.CachePolicy, speculative []byte, commit CommitFunc) ([]byte, error)
}

// Decoder turns an entry value into T
type Decoder[T any] func(data []byte) (T, error)

// JSONDecoder decodes JSON values into T
func JSONDecoder[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// DataSource is a typed accessor for one endpoint of one category
type DataSource[T any] struct {
	store    *Store
	codec    interfaces.KeyCodec
	endpoint string
	policy   models.CachePolicy
	decode   Decoder[T]
	mutator  Mutator
}

// MakeDataSource binds an endpoint to the store under the policy of category.
// A nil decoder decodes JSON.
func MakeDataSource[T any](store *Store, registry interfaces.PolicyRegistry, codec interfaces.KeyCodec, category models.Category, endpoint string, decode Decoder[T]) (*DataSource[T], error) {
	policy, err := registry.PolicyFor(category)
	if err != nil {
		return nil, err
	}
	if _, err := codec.Encode(endpoint, nil); err != nil {
		return nil, err
	}
	if decode == nil {
		decode = JSONDecoder[T]
	}
	return &DataSource[T]{
		store:    store,
		codec:    codec,
		endpoint: endpoint,
		policy:   policy,
		decode:   decode,
	}, nil
}

// WithMutator enables Mutate
func (d *DataSource[T]) WithMutator(m Mutator) *DataSource[T] {
	d.mutator = m
	return d
}

// Policy returns the bound policy
func (d *DataSource[T]) Policy() models.CachePolicy {
	return d.policy
}

// Key returns the cache key of params
func (d *DataSource[T]) Key(params map[string]any) (models.CacheKey, error) {
	return d.codec.Encode(d.endpoint, params)
}

// Get returns the cached value of params and schedules a fetch as the policy requires.
// The zero T is returned while no value is available.
func (d *DataSource[T]) Get(params map[string]any) (T, models.Entry, error) {
	var zero T
	key, err := d.Key(params)
	if err != nil {
		return zero, models.Entry{}, err
	}

	entry := d.store.Get(key, d.policy)
	return d.value(entry, entry.Err)
}

// Load waits for a fresh value of params
func (d *DataSource[T]) Load(ctx context.Context, params map[string]any) (T, models.Entry, error) {
	var zero T
	key, err := d.Key(params)
	if err != nil {
		return zero, models.Entry{}, err
	}

	entry, err := d.store.Load(ctx, key, d.policy)
	return d.value(entry, err)
}

// Subscribe calls fn with the decoded value on every change of params
func (d *DataSource[T]) Subscribe(params map[string]any, fn func(T, models.Entry)) (Subscription, error) {
	key, err := d.Key(params)
	if err != nil {
		return Subscription{}, err
	}

	return d.store.Subscribe(key, d.policy, func(entry models.Entry) {
		v, _, err := d.value(entry, nil)
		if err != nil && entry.Err == nil {
			entry.Err = err
		}
		fn(v, entry)
	})
}

// Unsubscribe removes a subscription made with Subscribe
func (d *DataSource[T]) Unsubscribe(sub Subscription) {
	d.store.Unsubscribe(sub)
}

// Invalidate marks every entry sharing the policy tags as stale
func (d *DataSource[T]) Invalidate() {
	d.store.Invalidate(d.policy.InvalidationTags)
}

// Mutate writes speculative for params, commits and converges the cache
func (d *DataSource[T]) Mutate(ctx context.Context, params map[string]any, speculative T, commit CommitFunc) ([]byte, error) {
	if d.mutator == nil {
		return nil, errors.New("data source has no mutator")
	}

	key, err := d.Key(params)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(speculative)
	if err != nil {
		return nil, fmt.Errorf("failed to encode speculative value: %w", err)
	}
	return d.mutator.Apply(ctx, key, d.policy, payload, commit)
}

func (d *DataSource[T]) value(entry models.Entry, err error) (T, models.Entry, error) {
	var zero T
	if !entry.HasValue() {
		return zero, entry, err
	}

	v, decodeErr := d.decode(entry.Value)
	if decodeErr != nil {
		return zero, entry, fmt.Errorf("failed to decode %s: %w", entry.Key, decodeErr)
	}
	return v, entry, err
}
