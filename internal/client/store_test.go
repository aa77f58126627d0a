package client

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"go-stats-cache/internal/interfaces/mock"
	"go-stats-cache/internal/metrics"
	"go-stats-cache/internal/models"
	"go-stats-cache/internal/network"
	"go-stats-cache/internal/offline"
)

var (
	dynamicPolicy = models.CachePolicy{
		Category:             models.CategoryDynamic,
		MaxStaleness:         5 * time.Minute,
		BackgroundRevalidate: true,
		InvalidationTags:     []string{models.TagGames, models.TagProjections},
	}
	staticPolicy = models.CachePolicy{
		Category:         models.CategoryStatic,
		MaxStaleness:     24 * time.Hour,
		InvalidationTags: []string{models.TagTeams},
		Offline:          true,
	}
	realTimePolicy = models.CachePolicy{
		Category:             models.CategoryRealTime,
		MaxStaleness:         0,
		BackgroundRevalidate: true,
		InvalidationTags:     []string{models.TagGames},
	}
)

const (
	gamesKey = models.CacheKey(`/api/games:{"week":"3"}`)
	teamsKey = models.CacheKey(`/api/teams:{}`)
)

func result(key models.CacheKey, data string) *models.FetchResult {
	return &models.FetchResult{
		Request:     models.NewOfflineRequest(http.MethodGet, "http://edge"+string(key)),
		Body:        []byte(`{"success":true,"data":` + data + `}`),
		Data:        []byte(data),
		ContentType: "application/json",
	}
}

func newTestStore(t *testing.T, fetcher *mock.MockFetcher, opts ...Option) *Store {
	t.Helper()
	store, err := NewStore(fetcher, Options{FetchTimeout: time.Second, MaxEntries: 16}, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func waitForState(t *testing.T, store *Store, key models.CacheKey, state models.EntryState) models.Entry {
	t.Helper()
	var entry models.Entry
	require.Eventually(t, func() bool {
		entry, _ = store.Peek(key)
		return entry.State == state
	}, time.Second, 5*time.Millisecond)
	return entry
}

func TestNewStore_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)

	_, err := NewStore(nil, Options{FetchTimeout: time.Second, MaxEntries: 1}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewStore(fetcher, Options{FetchTimeout: time.Second}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewStore(fetcher, Options{MaxEntries: 1}, zap.NewNop())
	assert.Error(t, err)
}

func TestStore_GetEmptySchedulesFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store := newTestStore(t, fetcher)

	fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).Return(result(gamesKey, `{"games":2}`), nil)

	entry := store.Get(gamesKey, dynamicPolicy)
	assert.Equal(t, models.EntryStateEmpty, entry.State)
	assert.False(t, entry.HasValue())

	fresh := waitForState(t, store, gamesKey, models.EntryStateFresh)
	assert.JSONEq(t, `{"games":2}`, string(fresh.Value))
	assert.Equal(t, models.CategoryDynamic, fresh.Category)
	assert.NoError(t, fresh.Err)

	// Fresh entries are served without another fetch
	again := store.Get(gamesKey, dynamicPolicy)
	assert.Equal(t, models.EntryStateFresh, again.State)
}

func TestStore_ConcurrentLoadsShareOneFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store := newTestStore(t, fetcher)

	entered := make(chan struct{})
	release := make(chan struct{})
	fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		close(entered)
		<-release
		return result(key, `{"games":7}`), nil
	}).Times(1)

	var wg sync.WaitGroup
	entries := make([]models.Entry, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		entries[0], errs[0] = store.Load(context.Background(), gamesKey, dynamicPolicy)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		entries[1], errs[1] = store.Load(context.Background(), gamesKey, dynamicPolicy)
	}()

	// A synchronous Get while in flight reports the revalidation without a new fetch
	assert.Equal(t, models.EntryStateRevalidating, store.Get(gamesKey, dynamicPolicy).State)

	close(release)
	wg.Wait()

	for i := range entries {
		require.NoError(t, errs[i])
		assert.JSONEq(t, `{"games":7}`, string(entries[i].Value))
	}
}

func TestStore_RealTimeAlwaysRevalidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store := newTestStore(t, fetcher)

	var calls atomic.Int32
	fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		calls.Add(1)
		return result(key, `{"live":true}`), nil
	}).Times(2)

	first, err := store.Load(context.Background(), gamesKey, realTimePolicy)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStateFresh, first.State)

	// The last value is served while the fetch is in flight
	entry := store.Get(gamesKey, realTimePolicy)
	assert.True(t, entry.HasValue())
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestStore_FailureRetainsValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store := newTestStore(t, fetcher)

	fetchErr := &models.FetchError{URL: "http://edge/api/games", StatusCode: 503, Err: errors.New("unexpected response status")}
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).Return(result(gamesKey, `{"games":1}`), nil),
		fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).Return(nil, fetchErr),
	)

	_, err := store.Load(context.Background(), gamesKey, dynamicPolicy)
	require.NoError(t, err)

	store.Revalidate(gamesKey, dynamicPolicy)
	entry := waitForState(t, store, gamesKey, models.EntryStateError)

	assert.JSONEq(t, `{"games":1}`, string(entry.Value))
	assert.True(t, entry.Degraded())
	assert.True(t, errors.Is(entry.Err, models.ErrFetchFailure))
}

func TestStore_FailureWithoutValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store := newTestStore(t, fetcher)

	fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).Return(nil, errors.New("connection refused"))

	entry, err := store.Load(context.Background(), gamesKey, dynamicPolicy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFetchFailure))
	assert.Equal(t, models.EntryStateError, entry.State)
	assert.False(t, entry.HasValue())
}

func TestStore_FetchTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store, err := NewStore(fetcher, Options{FetchTimeout: 20 * time.Millisecond, MaxEntries: 4}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err = store.Load(context.Background(), gamesKey, dynamicPolicy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFetchTimeout))
	assert.True(t, errors.Is(err, models.ErrFetchFailure))
}

func TestStore_InvalidateUnknownIsNoOp(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	collector := metrics.NewCollector(clock.NewMock())
	store := newTestStore(t, fetcher, WithMetrics(collector))

	store.Invalidate([]string{models.TagGames})
	store.InvalidateKey(gamesKey)

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, uint64(0), collector.Global().TotalInvalidations)
}

func TestStore_InvalidateRefetchesSubscribedOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	collector := metrics.NewCollector(clock.NewMock())
	store := newTestStore(t, fetcher, WithMetrics(collector))

	policy := dynamicPolicy
	policy.BackgroundRevalidate = false

	var gamesCalls atomic.Int32
	fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		gamesCalls.Add(1)
		return result(key, `{"games":1}`), nil
	}).Times(2)
	fetcher.EXPECT().Fetch(gomock.Any(), teamsKey).Return(result(teamsKey, `[]`), nil).Times(1)

	_, err := store.Subscribe(gamesKey, policy, func(models.Entry) {})
	require.NoError(t, err)
	waitForState(t, store, gamesKey, models.EntryStateFresh)

	_, err = store.Load(context.Background(), teamsKey, staticPolicy)
	require.NoError(t, err)

	store.Invalidate([]string{models.TagGames})
	assert.Eventually(t, func() bool { return gamesCalls.Load() == 2 }, time.Second, 5*time.Millisecond)

	store.Invalidate([]string{models.TagTeams})
	teams, _ := store.Peek(teamsKey)
	assert.Equal(t, models.EntryStateStale, teams.State)

	snap, ok := collector.Snapshot(models.CategoryDynamic)
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.Invalidations)
}

func TestStore_SubscribersNotifiedInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store := newTestStore(t, fetcher)

	policy := dynamicPolicy
	policy.BackgroundRevalidate = false
	release := make(chan struct{})
	fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		<-release
		return result(key, `{"games":3}`), nil
	})

	var mu sync.Mutex
	var order []string
	record := func(name string) Callback {
		return func(e models.Entry) {
			mu.Lock()
			defer mu.Unlock()
			if e.State == models.EntryStateFresh {
				order = append(order, name)
			}
		}
	}

	first, err := store.Subscribe(gamesKey, policy, record("first"))
	require.NoError(t, err)
	second, err := store.Subscribe(gamesKey, policy, record("second"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	close(release)

	waitForState(t, store, gamesKey, models.EntryStateFresh)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)

	entry, _ := store.Peek(gamesKey)
	assert.Equal(t, 2, entry.SubscriberCount)
}

func TestStore_CallbackMayCallBackIntoStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store, err := NewStore(fetcher, Options{FetchTimeout: time.Second, MaxEntries: 4}, zap.NewNop())
	require.NoError(t, err)

	policy := dynamicPolicy
	policy.BackgroundRevalidate = false
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).Return(nil, errors.New("connection reset")),
		fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).Return(result(gamesKey, `{"games":4}`), nil),
	)

	var retried atomic.Bool
	var mu sync.Mutex
	var states []models.EntryState
	_, err = store.Subscribe(gamesKey, policy, func(e models.Entry) {
		mu.Lock()
		states = append(states, e.State)
		mu.Unlock()
		if e.State == models.EntryStateError && retried.CompareAndSwap(false, true) {
			store.InvalidateKey(gamesKey)
		}
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) > 0 && states[len(states)-1] == models.EntryStateFresh
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []models.EntryState{models.EntryStateError, models.EntryStateStale, models.EntryStateFresh}, states)
	mu.Unlock()

	closed := make(chan error, 1)
	go func() { closed <- store.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("store did not close")
	}
}

func TestStore_LoadAfterEvictionDuringFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store, err := NewStore(fetcher, Options{FetchTimeout: time.Second, MaxEntries: 1}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	policy := staticPolicy
	policy.Offline = false

	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	var calls atomic.Int32
	fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			return result(key, `{"games":1}`), nil
		}
		return result(key, `{"games":9}`), nil
	}).Times(2)
	fetcher.EXPECT().Fetch(gomock.Any(), teamsKey).Return(result(teamsKey, `[]`), nil).AnyTimes()

	store.Get(gamesKey, policy)
	<-entered

	// Evicts the idle games entry while its fetch is blocked
	store.Get(teamsKey, policy)
	_, ok := store.Peek(gamesKey)
	require.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	entry, err := store.Load(ctx, gamesKey, policy)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStateFresh, entry.State)
	assert.JSONEq(t, `{"games":9}`, string(entry.Value))
}

func TestStore_LRUEvictsIdleEntriesOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store, err := NewStore(fetcher, Options{FetchTimeout: time.Second, MaxEntries: 2}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		return result(key, `1`), nil
	}).AnyTimes()

	policy := staticPolicy
	k1, k2, k3 := models.CacheKey("/a:{}"), models.CacheKey("/b:{}"), models.CacheKey("/c:{}")

	sub, err := store.Subscribe(k1, policy, func(models.Entry) {})
	require.NoError(t, err)
	store.Get(k2, policy)
	store.Get(k3, policy)

	_, ok := store.Peek(k2)
	assert.False(t, ok, "least recently used idle entry is evicted")
	_, ok = store.Peek(k1)
	assert.True(t, ok, "subscribed entry is kept")
	_, ok = store.Peek(k3)
	assert.True(t, ok)

	// Unsubscribing counts as a use, so k3 goes first
	store.Unsubscribe(sub)
	store.Get(k2, policy)
	_, ok = store.Peek(k3)
	assert.False(t, ok)
	_, ok = store.Peek(k1)
	assert.True(t, ok)

	store.Get(k3, policy)
	_, ok = store.Peek(k1)
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestStore_BackgroundRefreshWhileSubscribed(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	clk := clock.NewMock()
	store := newTestStore(t, fetcher, WithClock(clk))

	policy := dynamicPolicy
	policy.RefreshInterval = time.Minute

	var calls atomic.Int32
	fetcher.EXPECT().Fetch(gomock.Any(), gamesKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		calls.Add(1)
		return result(key, `{}`), nil
	}).MinTimes(2)

	sub, err := store.Subscribe(gamesKey, policy, func(models.Entry) {})
	require.NoError(t, err)
	waitForState(t, store, gamesKey, models.EntryStateFresh)

	clk.Add(time.Minute)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	waitForState(t, store, gamesKey, models.EntryStateFresh)

	store.Unsubscribe(sub)
	seen := calls.Load()
	clk.Add(5 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, calls.Load(), "refresh stops with the last subscriber")
}

func TestStore_FetchCompletesAfterLastSubscriberLeaves(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store := newTestStore(t, fetcher)

	policy := staticPolicy
	policy.Offline = false

	entered := make(chan struct{})
	release := make(chan struct{})
	fetcher.EXPECT().Fetch(gomock.Any(), teamsKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		close(entered)
		<-release
		return result(key, `["SEA"]`), nil
	})

	notified := atomic.Int32{}
	sub, err := store.Subscribe(teamsKey, policy, func(models.Entry) { notified.Add(1) })
	require.NoError(t, err)
	<-entered

	store.Unsubscribe(sub)
	close(release)

	entry := waitForState(t, store, teamsKey, models.EntryStateFresh)
	assert.JSONEq(t, `["SEA"]`, string(entry.Value))
	assert.Equal(t, int32(0), notified.Load())
}

func TestStore_WriteThroughForOfflinePolicies(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	offlineStore := mock.NewMockOfflineStore(ctrl)
	store := newTestStore(t, fetcher, WithOfflineStore(offlineStore))

	res := result(teamsKey, `["SEA"]`)
	fetcher.EXPECT().Fetch(gomock.Any(), teamsKey).Return(res, nil)
	offlineStore.EXPECT().Write(gomock.Any(), res.Request, models.OfflineResponse{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        res.Body,
	}).Return(nil)

	_, err := store.Load(context.Background(), teamsKey, staticPolicy)
	require.NoError(t, err)
}

func TestStore_OfflineFallbackWhenFetchFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	offlineStore := mock.NewMockOfflineStore(ctrl)
	store := newTestStore(t, fetcher, WithOfflineStore(offlineStore))

	req := models.NewOfflineRequest(http.MethodGet, "http://edge/api/teams")
	fetcher.EXPECT().Fetch(gomock.Any(), teamsKey).Return(nil, errors.New("connection refused"))
	fetcher.EXPECT().RequestFor(teamsKey).Return(req, nil)
	offlineStore.EXPECT().Read(gomock.Any(), req).Return(&models.OfflineResponse{
		Status:   http.StatusOK,
		Body:     []byte(`{"success":true,"data":["SEA"]}`),
		StoredAt: time.Now().Add(-time.Hour),
	}, nil)

	entry, err := store.Load(context.Background(), teamsKey, staticPolicy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFetchFailure))
	assert.Equal(t, models.EntryStateError, entry.State)
	assert.JSONEq(t, `["SEA"]`, string(entry.Value))
}

func TestStore_SpeculativeOutdatesInFlightFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store := newTestStore(t, fetcher)

	policy := staticPolicy
	policy.Offline = false

	entered := make(chan struct{})
	release := make(chan struct{})
	fetcher.EXPECT().Fetch(gomock.Any(), teamsKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		close(entered)
		<-release
		return result(key, `["old"]`), nil
	})

	store.Get(teamsKey, policy)
	<-entered
	store.SetSpeculative(teamsKey, policy, []byte(`["new"]`))
	close(release)

	require.Eventually(t, func() bool {
		e, _ := store.Peek(teamsKey)
		return string(e.Value) == `["new"]` && e.Speculative
	}, time.Second, 5*time.Millisecond)

	// No fetch is scheduled for a speculative value
	entry := store.Get(teamsKey, policy)
	assert.True(t, entry.Speculative)
}

func TestStore_ClosedRejectsSubscribe(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	store := newTestStore(t, fetcher)
	require.NoError(t, store.Close())

	_, err := store.Subscribe(gamesKey, dynamicPolicy, func(models.Entry) {})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.Load(context.Background(), gamesKey, dynamicPolicy)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_HitRateMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	collector := metrics.NewCollector(clock.NewMock())
	store := newTestStore(t, fetcher, WithMetrics(collector))

	fetcher.EXPECT().Fetch(gomock.Any(), teamsKey).Return(result(teamsKey, `[]`), nil)

	policy := staticPolicy
	policy.Offline = false
	_, err := store.Load(context.Background(), teamsKey, policy)
	require.NoError(t, err)
	_, err = store.Load(context.Background(), teamsKey, policy)
	require.NoError(t, err)
	store.Get(teamsKey, policy)

	// One miss for the network round-trip, two hits from memory
	snap, ok := collector.Snapshot(models.CategoryStatic)
	require.True(t, ok)
	assert.Equal(t, uint64(2), snap.Hits)
	assert.Equal(t, uint64(1), snap.Misses)
	assert.Equal(t, int64(2), snap.SizeBytes)
}

func TestStore_OfflineReadsAndReconnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)

	layer, err := offline.Open(filepath.Join(t.TempDir(), "offline.db"), "v1", clock.New(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = layer.Close() })

	req := models.NewOfflineRequest(http.MethodGet, "http://edge/api/teams")
	require.NoError(t, layer.Write(t.Context(), req, models.OfflineResponse{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        []byte(`{"success":true,"data":["SEA","KC"]}`),
	}))

	monitor := network.NewMonitor(false, clock.New(), zap.NewNop())
	store := newTestStore(t, fetcher, WithOfflineStore(layer), WithNetworkStatus(monitor))

	fetcher.EXPECT().RequestFor(teamsKey).Return(req, nil)

	policy := staticPolicy
	policy.Offline = false
	entry, err := store.Load(t.Context(), teamsKey, policy)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStateFresh, entry.State)
	assert.JSONEq(t, `["SEA","KC"]`, string(entry.Value))

	_, err = store.Subscribe(teamsKey, policy, func(models.Entry) {})
	require.NoError(t, err)

	refetched := make(chan struct{})
	fetcher.EXPECT().Fetch(gomock.Any(), teamsKey).DoAndReturn(func(ctx context.Context, key models.CacheKey) (*models.FetchResult, error) {
		close(refetched)
		return result(key, `["SEA","KC","SF"]`), nil
	})

	monitor.Signal(true)
	select {
	case <-refetched:
	case <-time.After(time.Second):
		t.Fatal("subscribed entry was not revalidated after reconnect")
	}
	require.Eventually(t, func() bool {
		e, _ := store.Peek(teamsKey)
		return string(e.Value) == `["SEA","KC","SF"]`
	}, time.Second, 5*time.Millisecond)
}

func TestStore_OfflineWithoutStoredCopy(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock.NewMockFetcher(ctrl)
	offlineStore := mock.NewMockOfflineStore(ctrl)
	monitor := network.NewMonitor(false, clock.New(), zap.NewNop())
	store := newTestStore(t, fetcher, WithOfflineStore(offlineStore), WithNetworkStatus(monitor))

	req := models.NewOfflineRequest(http.MethodGet, "http://edge/api/games")
	fetcher.EXPECT().RequestFor(gamesKey).Return(req, nil)
	offlineStore.EXPECT().Read(gomock.Any(), req).Return(nil, models.ErrNotFound)

	entry, err := store.Load(t.Context(), gamesKey, dynamicPolicy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrOfflineUnavailable))
	assert.Equal(t, models.EntryStateError, entry.State)
}
