package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
	"go-stats-cache/internal/scheduler"
)

var (
	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("client store closed")

	errEvicted = errors.New("entry evicted before fetch completed")
)

// Callback receives a copy of an entry after every change
type Callback func(models.Entry)

// Subscription identifies one registered callback
type Subscription struct {
	ID  uuid.UUID
	Key models.CacheKey
}

// Options bound the store
type Options struct {
	FetchTimeout time.Duration
	// MaxEntries is the LRU ceiling on entries without subscribers
	MaxEntries int
}

// Option configures optional collaborators of a Store
type Option func(*Store)

// WithOfflineStore enables offline reads and write-through
func WithOfflineStore(o interfaces.OfflineStore) Option {
	return func(s *Store) { s.offline = o }
}

// WithNetworkStatus routes fetches to the offline store while offline and
// revalidates subscribed entries on reconnect
func WithNetworkStatus(n interfaces.NetworkStatus) Option {
	return func(s *Store) { s.network = n }
}

// WithMetrics records every resolution
func WithMetrics(m interfaces.MetricsRecorder) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

type subscriber struct {
	id uuid.UUID
	fn Callback
}

type entry struct {
	key       models.CacheKey
	policy    models.CachePolicy
	value     []byte
	fetchedAt time.Time
	state     models.EntryState
	err       error

	speculative bool
	inflight    bool
	// pending asks for another fetch once the in-flight one completes
	pending bool
	// gen changes on every write that outdates an in-flight fetch
	gen uint64

	subs      []subscriber
	refresher *scheduler.Scheduler

	// queue holds notifications in state change order, draining marks a goroutine delivering them
	queue    []notification
	draining bool
}

type notification struct {
	snap      models.Entry
	callbacks []Callback
}

func (e *entry) snapshot() models.Entry {
	return models.Entry{
		Key:             e.key,
		Category:        e.policy.Category,
		Value:           bytes.Clone(e.value),
		FetchedAt:       e.fetchedAt,
		State:           e.state,
		Err:             e.err,
		SubscriberCount: len(e.subs),
		Speculative:     e.speculative,
	}
}

func (e *entry) callbacks() []Callback {
	fns := make([]Callback, len(e.subs))
	for i, sub := range e.subs {
		fns[i] = sub.fn
	}
	return fns
}

// enqueueLocked queues the current state of e for its subscribers and reports
// whether the caller has to drain the queue
func (e *entry) enqueueLocked() bool {
	if len(e.subs) > 0 {
		e.queue = append(e.queue, notification{snap: e.snapshot(), callbacks: e.callbacks()})
	}
	if e.draining || len(e.queue) == 0 {
		return false
	}
	e.draining = true
	return true
}

// drain delivers the queued notifications of e without holding any lock, so
// callbacks may call back into the store. Changes made meanwhile are delivered
// by the same loop after the current one.
func (s *Store) drain(e *entry) {
	for {
		s.mu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			s.mu.Unlock()
			return
		}
		n := e.queue[0]
		e.queue[0] = notification{}
		e.queue = e.queue[1:]
		s.mu.Unlock()

		for _, fn := range n.callbacks {
			fn(n.snap)
		}
	}
}

// Store is the client-side data cache: the last known value of every key,
// at most one fetch in flight per key and the subscribers to notify.
type Store struct {
	fetcher interfaces.Fetcher
	offline interfaces.OfflineStore
	network interfaces.NetworkStatus
	metrics interfaces.MetricsRecorder
	clock   clock.Clock
	logger  *zap.Logger
	opts    Options

	mu      sync.Mutex
	entries map[models.CacheKey]*entry
	// idle orders zero-subscriber entries for eviction
	idle   *simplelru.LRU[models.CacheKey, struct{}]
	sizes  map[models.Category]int64
	closed bool

	flight            singleflight.Group
	wg                sync.WaitGroup
	unsubscribeStatus func()
}

// NewStore creates a store fetching through fetcher
func NewStore(fetcher interfaces.Fetcher, opts Options, logger *zap.Logger, options ...Option) (*Store, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.MaxEntries <= 0 {
		return nil, fmt.Errorf("max entries must be positive, got %d", opts.MaxEntries)
	}
	if opts.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %s", opts.FetchTimeout)
	}

	s := &Store{
		fetcher: fetcher,
		clock:   clock.New(),
		logger:  logger,
		opts:    opts,
		entries: make(map[models.CacheKey]*entry),
		sizes:   make(map[models.Category]int64),
	}
	for _, opt := range options {
		opt(s)
	}

	idle, err := simplelru.NewLRU[models.CacheKey, struct{}](opts.MaxEntries, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU: %w", err)
	}
	s.idle = idle

	if s.network != nil {
		s.unsubscribeStatus = s.network.Subscribe(s.onNetworkChange)
	}
	return s, nil
}

// Close stops background revalidation and waits for in-flight fetches
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var refreshers []*scheduler.Scheduler
	for _, e := range s.entries {
		if e.refresher != nil {
			refreshers = append(refreshers, e.refresher)
			e.refresher = nil
		}
	}
	unsubscribe := s.unsubscribeStatus
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, r := range refreshers {
		r.Stop()
	}
	s.wg.Wait()
	return nil
}

// Get returns the current entry of key and schedules a fetch when the entry is
// empty, stale per policy, or in error
func (s *Store) Get(key models.CacheKey, policy models.CachePolicy) models.Entry {
	return s.get(key, policy, false)
}

// Revalidate is Get with a forced fetch
func (s *Store) Revalidate(key models.CacheKey, policy models.CachePolicy) models.Entry {
	return s.get(key, policy, true)
}

func (s *Store) get(key models.CacheKey, policy models.CachePolicy, force bool) models.Entry {
	start := s.clock.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Entry{Key: key, Category: policy.Category, State: models.EntryStateEmpty, Err: ErrClosed}
	}
	e := s.entryLocked(key, policy)
	fetch := force || s.needsFetchLocked(e)
	if e.value != nil {
		s.recordOutcome(policy.Category, models.OutcomeHit, s.clock.Since(start))
	}
	snap := e.snapshot()
	inflight := e.inflight
	s.mu.Unlock()

	if fetch && !inflight {
		s.startFetch(key)
	}
	return snap
}

// Load returns a fresh entry, waiting for the shared in-flight fetch when needed.
// The returned error is the entry error, which may come with a retained value.
func (s *Store) Load(ctx context.Context, key models.CacheKey, policy models.CachePolicy) (models.Entry, error) {
	start := s.clock.Now()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return models.Entry{Key: key, Category: policy.Category, State: models.EntryStateEmpty}, ErrClosed
		}
		e := s.entryLocked(key, policy)
		if e.value != nil && !s.needsFetchLocked(e) {
			s.recordOutcome(policy.Category, models.OutcomeHit, s.clock.Since(start))
			snap := e.snapshot()
			s.mu.Unlock()
			return snap, nil
		}
		s.mu.Unlock()

		done := s.startFetch(key)
		select {
		case <-done:
		case <-ctx.Done():
			snap, _ := s.Peek(key)
			return snap, ctx.Err()
		}

		s.mu.Lock()
		e, ok := s.entries[key]
		switch {
		case !ok, e.state == models.EntryStateEmpty, e.state == models.EntryStateRevalidating:
			// The entry was evicted or replaced while waiting, fetch for the current one
			s.mu.Unlock()
			continue
		case e.pending:
			// The result was outdated by a newer write, wait for the follow-up fetch
			s.mu.Unlock()
			continue
		}
		snap := e.snapshot()
		s.mu.Unlock()
		return snap, snap.Err
	}
}

// Peek returns the current entry of key without fetching
func (s *Store) Peek(key models.CacheKey) (models.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return models.Entry{Key: key, State: models.EntryStateEmpty}, false
	}
	return e.snapshot(), true
}

// Len returns the number of entries held
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Subscribe registers callback for every change of key. The first subscriber of a
// policy with background revalidation starts a recurring refresh of the key.
func (s *Store) Subscribe(key models.CacheKey, policy models.CachePolicy, callback Callback) (Subscription, error) {
	if callback == nil {
		return Subscription{}, errors.New("callback is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Subscription{}, ErrClosed
	}

	e := s.entryLocked(key, policy)
	sub := Subscription{ID: uuid.New(), Key: key}
	e.subs = append(e.subs, subscriber{id: sub.ID, fn: callback})
	if len(e.subs) == 1 {
		// Subscribed entries are never evicted
		s.idle.Remove(key)
	}

	var refresher *scheduler.Scheduler
	if e.refresher == nil && policy.BackgroundRevalidate && policy.RefreshInterval > 0 {
		e.refresher = scheduler.New(policy.RefreshInterval, func() {
			s.refreshSubscribed(key)
		}, scheduler.WithClock(s.clock))
		refresher = e.refresher
	}

	fetch := s.needsFetchLocked(e) && !e.inflight
	s.mu.Unlock()

	if refresher != nil {
		refresher.Start()
	}
	if fetch {
		s.startFetch(key)
	}

	s.logger.Debug("Subscribed", zap.String("key", string(key)), zap.String("subscription", sub.ID.String()))
	return sub, nil
}

// Unsubscribe removes a subscription. At zero subscribers the entry becomes
// eligible for eviction and its recurring refresh stops. Unknown subscriptions are ignored.
func (s *Store) Unsubscribe(sub Subscription) {
	s.mu.Lock()
	e, ok := s.entries[sub.Key]
	if !ok {
		s.mu.Unlock()
		return
	}

	removed := false
	for i, existing := range e.subs {
		if existing.id == sub.ID {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			removed = true
			break
		}
	}

	var refresher *scheduler.Scheduler
	if removed && len(e.subs) == 0 {
		refresher = e.refresher
		e.refresher = nil
		s.idle.Add(sub.Key, struct{}{})
		s.enforceCeilingLocked(sub.Key)
	}
	s.mu.Unlock()

	// Stopped outside the lock, the refresh task takes it
	if refresher != nil {
		refresher.Stop()
	}
}

// Invalidate marks every entry whose policy carries one of the tags as stale.
// Subscribed entries refetch in the background. Entries without a match are untouched.
func (s *Store) Invalidate(tags []string) {
	s.invalidate(tags)
}

// RevalidateTags invalidates tags and waits for the triggered refetches
func (s *Store) RevalidateTags(ctx context.Context, tags []string) error {
	keys := s.invalidate(tags)

	var errs []error
	for _, key := range keys {
		select {
		case <-s.startFetch(key):
		case <-ctx.Done():
			return ctx.Err()
		}
		if snap, ok := s.Peek(key); ok && snap.Err != nil {
			errs = append(errs, fmt.Errorf("revalidate %s: %w", key, snap.Err))
		}
	}
	return errors.Join(errs...)
}

// invalidate returns the keys whose refetch was triggered
func (s *Store) invalidate(tags []string) []models.CacheKey {
	s.mu.Lock()
	var matched []*entry
	for _, e := range s.entries {
		if e.policy.MatchesAny(tags) {
			matched = append(matched, e)
		}
	}
	s.mu.Unlock()

	if len(matched) == 0 {
		return nil
	}

	categories := make(map[models.Category]struct{})
	var refetch []models.CacheKey
	for _, e := range matched {
		if s.markStale(e, false) {
			refetch = append(refetch, e.key)
		}
		categories[e.policy.Category] = struct{}{}
	}

	for category := range categories {
		if s.metrics != nil {
			s.metrics.RecordInvalidation(category)
		}
	}

	for _, key := range refetch {
		s.startFetch(key)
	}

	s.logger.Debug("Invalidated client cache",
		zap.Strings("tags", tags),
		zap.Int("entries", len(matched)),
		zap.Int("refetching", len(refetch)))
	return refetch
}

// InvalidateKey marks key stale and always refetches it
func (s *Store) InvalidateKey(key models.CacheKey) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return
	}

	if s.markStale(e, true) {
		s.startFetch(key)
	}
	if s.metrics != nil {
		s.metrics.RecordInvalidation(e.policy.Category)
	}
}

// markStale outdates e and any in-flight fetch of it, notifies its subscribers and
// reports whether a fetch must be started now
func (s *Store) markStale(e *entry, force bool) bool {
	s.mu.Lock()
	if s.entries[e.key] != e {
		s.mu.Unlock()
		return false
	}

	if e.value != nil || e.state == models.EntryStateError {
		e.state = models.EntryStateStale
	}
	e.speculative = false
	e.gen++
	// An outdated in-flight fetch is always followed up, someone asked for the key
	start := false
	switch {
	case e.inflight:
		e.pending = true
	case force || len(e.subs) > 0:
		start = true
	}
	deliver := e.enqueueLocked()
	s.mu.Unlock()

	if deliver {
		s.drain(e)
	}
	return start
}

// SetSpeculative writes an unconfirmed value, outdating any in-flight fetch, and
// notifies subscribers. No fetch is scheduled for the key while the value is speculative.
func (s *Store) SetSpeculative(key models.CacheKey, policy models.CachePolicy, value []byte) {
	s.mu.Lock()
	e := s.entryLocked(key, policy)
	s.setValueLocked(e, value)
	e.state = models.EntryStateFresh
	e.err = nil
	e.speculative = true
	e.gen++
	deliver := e.enqueueLocked()
	s.mu.Unlock()

	if deliver {
		s.drain(e)
	}
}

// Restore puts back a snapshot taken before a speculative write and marks the entry
// as failed with err
func (s *Store) Restore(snapshot models.Entry, err error) {
	s.mu.Lock()
	e, ok := s.entries[snapshot.Key]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.setValueLocked(e, bytes.Clone(snapshot.Value))
	e.fetchedAt = snapshot.FetchedAt
	if snapshot.Category != "" {
		e.policy.Category = snapshot.Category
	}
	e.state = models.EntryStateError
	e.err = err
	e.speculative = false
	e.gen++
	deliver := e.enqueueLocked()
	s.mu.Unlock()

	if deliver {
		s.drain(e)
	}
}

// entryLocked returns the entry of key, creating an empty one when missing
func (s *Store) entryLocked(key models.CacheKey, policy models.CachePolicy) *entry {
	e, ok := s.entries[key]
	if ok {
		if e.policy.Category != policy.Category && e.value != nil {
			value := e.value
			s.setValueLocked(e, nil)
			e.policy = policy
			s.setValueLocked(e, value)
		}
		e.policy = policy
		if len(e.subs) == 0 {
			s.idle.Get(key)
		}
		return e
	}

	e = &entry{key: key, policy: policy, state: models.EntryStateEmpty}
	s.entries[key] = e
	s.idle.Add(key, struct{}{})
	s.enforceCeilingLocked(key)
	return e
}

// enforceCeilingLocked evicts least recently used idle entries above MaxEntries, never keep
func (s *Store) enforceCeilingLocked(keep models.CacheKey) {
	for len(s.entries) > s.opts.MaxEntries {
		oldest, _, ok := s.idle.GetOldest()
		if !ok || oldest == keep {
			return
		}
		s.idle.RemoveOldest()
	}
}

// onEvict runs under s.mu from the idle LRU
func (s *Store) onEvict(key models.CacheKey, _ struct{}) {
	e, ok := s.entries[key]
	if !ok || len(e.subs) > 0 {
		return
	}
	s.setValueLocked(e, nil)
	delete(s.entries, key)
	// A fetch still in flight belongs to the evicted entry, the next one starts anew
	s.flight.Forget(string(key))
	s.logger.Debug("Evicted client cache entry", zap.String("key", string(key)))
}

func (s *Store) needsFetchLocked(e *entry) bool {
	if e.speculative {
		return false
	}
	switch e.state {
	case models.EntryStateEmpty, models.EntryStateStale, models.EntryStateError:
		return true
	case models.EntryStateRevalidating:
		return false
	}
	return e.value == nil || e.policy.IsStale(e.fetchedAt, s.clock.Now())
}

// setValueLocked replaces the value of e and keeps the per-category size current
func (s *Store) setValueLocked(e *entry, value []byte) {
	category := e.policy.Category
	s.sizes[category] += int64(len(value)) - int64(len(e.value))
	e.value = value
	if s.metrics != nil {
		s.metrics.RecordSize(category, s.sizes[category])
	}
}

func (s *Store) recordOutcome(category models.Category, outcome models.Outcome, latency time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordOutcome(category, outcome, latency)
	}
}

func (s *Store) refreshSubscribed(key models.CacheKey) {
	s.mu.Lock()
	e, ok := s.entries[key]
	run := ok && len(e.subs) > 0 && !e.inflight && !e.speculative && !s.closed
	s.mu.Unlock()

	if run {
		s.startFetch(key)
	}
}

func (s *Store) onNetworkChange(state models.NetworkState) {
	if !state.Online {
		return
	}

	s.mu.Lock()
	var keys []models.CacheKey
	for key, e := range s.entries {
		if len(e.subs) > 0 && !e.speculative {
			keys = append(keys, key)
		}
	}
	s.mu.Unlock()

	s.logger.Info("Revalidating subscribed entries after reconnect", zap.Int("entries", len(keys)))
	for _, key := range keys {
		s.startFetch(key)
	}
}
