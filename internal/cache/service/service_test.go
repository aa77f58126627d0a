package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"go-stats-cache/internal/cache"
	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/interfaces/mock"
	"go-stats-cache/internal/models"
	"go-stats-cache/internal/policy"
)

type serviceFixture struct {
	service *CacheService
	l1      *mock.MockCache
	l2      *mock.MockCache
	fetcher *mock.MockFetcher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &serviceFixture{
		l1:      mock.NewMockCache(ctrl),
		l2:      mock.NewMockCache(ctrl),
		fetcher: mock.NewMockFetcher(ctrl),
	}
	f.service = NewCacheService(
		[]interfaces.Cache{f.l1, f.l2},
		policy.NewDefaultRegistry(zap.NewNop()),
		cache.NewKeyCodec(),
		f.fetcher,
		false,
		zap.NewNop(),
	)
	return f
}

func fetchResult(body string) *models.FetchResult {
	return &models.FetchResult{
		Request:     models.NewOfflineRequest(http.MethodGet, "http://upstream/api"),
		Body:        []byte(body),
		ContentType: "application/json",
	}
}

func freshEntry(body string) *models.CacheEntry {
	now := time.Now().Unix()
	return &models.CacheEntry{Data: []byte(body), CreatedAt: now, StaleAt: now + 60, ExpiresAt: now + 120}
}

func TestServe_L1Hit(t *testing.T) {
	f := newServiceFixture(t)
	body := `{"success":true,"data":[]}`

	f.l1.EXPECT().Get(`/api/players:{"team":"SEA"}`).Return(freshEntry(body), true)

	resp, err := f.service.Serve(context.Background(), "/api/players", url.Values{"team": {"SEA"}})
	require.NoError(t, err)
	assert.Equal(t, models.CacheStatusHit, resp.Status)
	assert.Equal(t, models.CacheLevelL1, resp.Level)
	assert.Equal(t, models.CategorySemiStatic, resp.Category)
	assert.Equal(t, body, string(resp.Body))
	assert.Equal(t, "application/json", resp.ContentType)
}

func TestServe_MissFetchesAndStores(t *testing.T) {
	f := newServiceFixture(t)
	key := `/api/games:{"week":"3"}`
	body := `{"success":true,"data":{"games":2}}`
	ttl := models.TTL{Fresh: 5 * time.Minute, Stale: time.Hour}
	tags := []string{models.TagGames, models.TagProjections, models.TagUserPreferences}

	f.l1.EXPECT().Get(key).Return(nil, false)
	f.l2.EXPECT().Get(key).Return(nil, false)
	f.fetcher.EXPECT().Fetch(gomock.Any(), models.CacheKey(key)).Return(fetchResult(body), nil)
	f.l1.EXPECT().Set(key, []byte(body), ttl, tags)
	f.l2.EXPECT().Set(key, []byte(body), ttl, tags)

	resp, err := f.service.Serve(context.Background(), "/api/games", url.Values{"week": {"3"}})
	require.NoError(t, err)
	assert.Equal(t, models.CacheStatusMiss, resp.Status)
	assert.Equal(t, models.CacheLevelMiss, resp.Level)
	assert.Equal(t, models.CategoryDynamic, resp.Category)
	assert.Equal(t, body, string(resp.Body))
}

func TestServe_RealTimeBypassesTiers(t *testing.T) {
	f := newServiceFixture(t)
	key := `/api/games/today:{}`
	body := `{"success":true,"data":[]}`
	ttl := models.TTL{Fresh: 0, Stale: time.Minute}
	tags := []string{models.TagGames, models.TagProjections}

	// No Get: zero staleness skips the fresh lookup, but a stale-if-error copy is kept
	f.fetcher.EXPECT().Fetch(gomock.Any(), models.CacheKey(key)).Return(fetchResult(body), nil)
	f.l1.EXPECT().Set(key, []byte(body), ttl, tags)
	f.l2.EXPECT().Set(key, []byte(body), ttl, tags)

	resp, err := f.service.Serve(context.Background(), "/api/games/today", nil)
	require.NoError(t, err)
	assert.Equal(t, models.CacheStatusBypass, resp.Status)
	assert.Equal(t, models.CategoryRealTime, resp.Category)
}

func TestServe_StaleOnUpstreamFailure(t *testing.T) {
	f := newServiceFixture(t)
	key := `/api/teams:{}`
	now := time.Now().Unix()
	stale := &models.CacheEntry{Data: []byte("old"), StaleAt: now - 5, ExpiresAt: now + 60}
	fetchErr := &models.FetchError{URL: "http://upstream/api/teams", StatusCode: 503, Err: errors.New("unexpected response status")}

	f.l1.EXPECT().Get(key).Return(nil, false)
	f.l2.EXPECT().Get(key).Return(nil, false)
	f.fetcher.EXPECT().Fetch(gomock.Any(), models.CacheKey(key)).Return(nil, fetchErr)
	f.l1.EXPECT().GetStale(key).Return(nil, false)
	f.l2.EXPECT().GetStale(key).Return(stale, true)

	resp, err := f.service.Serve(context.Background(), "/api/teams", nil)
	require.NoError(t, err)
	assert.Equal(t, models.CacheStatusStale, resp.Status)
	assert.Equal(t, models.CacheLevelL2, resp.Level)
	assert.Equal(t, "old", string(resp.Body))
}

func TestServe_UpstreamFailureWithoutStaleCopy(t *testing.T) {
	f := newServiceFixture(t)
	key := `/api/teams:{}`
	fetchErr := &models.FetchError{URL: "http://upstream/api/teams", Err: errors.New("connection refused")}

	f.l1.EXPECT().Get(key).Return(nil, false)
	f.l2.EXPECT().Get(key).Return(nil, false)
	f.fetcher.EXPECT().Fetch(gomock.Any(), models.CacheKey(key)).Return(nil, fetchErr)
	f.l1.EXPECT().GetStale(key).Return(nil, false)
	f.l2.EXPECT().GetStale(key).Return(nil, false)

	_, err := f.service.Serve(context.Background(), "/api/teams", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFetchFailure))
}

func TestServe_UnknownRoute(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Serve(context.Background(), "/api/weather", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownCategory))
}

func TestPurgeTags_PerTag(t *testing.T) {
	f := newServiceFixture(t)

	f.l1.EXPECT().PurgeTags([]string{"games"}).Return(2, nil)
	f.l2.EXPECT().PurgeTags([]string{"games"}).Return(3, nil)
	f.l1.EXPECT().PurgeTags([]string{"players"}).Return(1, nil)
	f.l2.EXPECT().PurgeTags([]string{"players"}).Return(0, errors.New("keydb down"))

	removed, err := f.service.PurgeTags(context.Background(), []string{"games", "players"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag 'players'")
	assert.Equal(t, 6, removed)
}
