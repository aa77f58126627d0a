package l2

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"go-stats-cache/internal/config"
	"go-stats-cache/internal/interfaces/mock"
	"go-stats-cache/internal/models"
)

func newTestCache(t *testing.T) (*KeyDBCache, *mock.MockKeyDbClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockClient := mock.NewMockKeyDbClient(ctrl)
	cache := NewKeyDBCache(config.Default(), mockClient, zap.NewNop()).(*KeyDBCache)
	return cache, mockClient
}

func entryJSON(t *testing.T, entry models.CacheEntry) string {
	t.Helper()
	data, err := json.Marshal(entry)
	require.NoError(t, err)
	return string(data)
}

func TestNewKeyDBCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := mock.NewMockKeyDbClient(ctrl)
	cfg := config.Default()
	logger := zap.NewNop()

	cache := NewKeyDBCache(cfg, mockClient, logger)

	keydbCache, ok := cache.(*KeyDBCache)
	require.True(t, ok)
	assert.Equal(t, mockClient, keydbCache.client)
	assert.Equal(t, cfg, keydbCache.config)
	assert.Equal(t, logger, keydbCache.logger)
}

func TestKeyDBCache_Get_Fresh(t *testing.T) {
	cache, mockClient := newTestCache(t)

	now := time.Now().Unix()
	raw := entryJSON(t, models.CacheEntry{
		Data:      []byte("test-data"),
		Tags:      []string{"games"},
		CreatedAt: now - 100,
		StaleAt:   now + 100,
		ExpiresAt: now + 200,
	})
	mockClient.EXPECT().Get(gomock.Any(), "test-key").Return(redis.NewStringResult(raw, nil))

	entry, found := cache.Get("test-key")
	require.True(t, found)
	assert.True(t, entry.IsFresh())
	assert.Equal(t, []byte("test-data"), entry.Data)
	assert.Equal(t, []string{"games"}, entry.Tags)
}

func TestKeyDBCache_Get_StaleOnlyFromGetStale(t *testing.T) {
	cache, mockClient := newTestCache(t)

	now := time.Now().Unix()
	raw := entryJSON(t, models.CacheEntry{
		Data:      []byte("stale-data"),
		CreatedAt: now - 200,
		StaleAt:   now - 100,
		ExpiresAt: now + 100,
	})
	mockClient.EXPECT().Get(gomock.Any(), "test-key").Return(redis.NewStringResult(raw, nil)).Times(2)

	_, found := cache.Get("test-key")
	assert.False(t, found)

	entry, found := cache.GetStale("test-key")
	require.True(t, found)
	assert.False(t, entry.IsFresh())
	assert.Equal(t, []byte("stale-data"), entry.Data)
}

func TestKeyDBCache_Get_Expired(t *testing.T) {
	cache, mockClient := newTestCache(t)

	now := time.Now().Unix()
	raw := entryJSON(t, models.CacheEntry{
		Data:      []byte("expired"),
		CreatedAt: now - 300,
		StaleAt:   now - 200,
		ExpiresAt: now - 100,
	})
	mockClient.EXPECT().Get(gomock.Any(), "test-key").Return(redis.NewStringResult(raw, nil))
	mockClient.EXPECT().Del(gomock.Any(), "test-key").Return(redis.NewIntResult(1, nil))

	_, found := cache.GetStale("test-key")
	assert.False(t, found)
}

func TestKeyDBCache_Get_Miss(t *testing.T) {
	cache, mockClient := newTestCache(t)

	mockClient.EXPECT().Get(gomock.Any(), "absent").Return(redis.NewStringResult("", redis.Nil))

	entry, found := cache.Get("absent")
	assert.False(t, found)
	assert.Nil(t, entry)
}

func TestKeyDBCache_Get_ConnectionError(t *testing.T) {
	cache, mockClient := newTestCache(t)

	mockClient.EXPECT().Get(gomock.Any(), "k").Return(redis.NewStringResult("", errors.New("connection refused")))

	_, found := cache.Get("k")
	assert.False(t, found)
}

func TestKeyDBCache_Get_InvalidJSON(t *testing.T) {
	cache, mockClient := newTestCache(t)

	mockClient.EXPECT().Get(gomock.Any(), "k").Return(redis.NewStringResult("invalid-json", nil))
	mockClient.EXPECT().Del(gomock.Any(), "k").Return(redis.NewIntResult(1, nil))

	_, found := cache.Get("k")
	assert.False(t, found)
}

func TestKeyDBCache_Set_IndexesTags(t *testing.T) {
	cache, mockClient := newTestCache(t)
	ttl := models.TTL{Fresh: 300 * time.Second, Stale: time.Hour}

	gomock.InOrder(
		mockClient.EXPECT().
			Set(gomock.Any(), "k", gomock.Any(), 300*time.Second+time.Hour).
			DoAndReturn(func(_ any, _ string, value any, _ time.Duration) *redis.StatusCmd {
				var entry models.CacheEntry
				require.NoError(t, json.Unmarshal(value.([]byte), &entry))
				assert.Equal(t, []byte("v"), entry.Data)
				assert.Equal(t, []string{"games", "projections"}, entry.Tags)
				assert.Equal(t, entry.CreatedAt+300, entry.StaleAt)
				assert.Equal(t, entry.CreatedAt+300+3600, entry.ExpiresAt)
				return redis.NewStatusResult("OK", nil)
			}),
		mockClient.EXPECT().SAdd(gomock.Any(), "tag:games", "k").Return(redis.NewIntResult(1, nil)),
		mockClient.EXPECT().Expire(gomock.Any(), "tag:games", 30*24*time.Hour).Return(redis.NewBoolResult(true, nil)),
		mockClient.EXPECT().SAdd(gomock.Any(), "tag:projections", "k").Return(redis.NewIntResult(1, nil)),
		mockClient.EXPECT().Expire(gomock.Any(), "tag:projections", 30*24*time.Hour).Return(redis.NewBoolResult(true, nil)),
	)

	cache.Set("k", []byte("v"), ttl, []string{"games", "projections"})
}

func TestKeyDBCache_Set_CapsTTL(t *testing.T) {
	cache, mockClient := newTestCache(t)
	cache.config.L2.Cache.MaxTTL = 60

	mockClient.EXPECT().Set(gomock.Any(), "k", gomock.Any(), time.Minute).Return(redis.NewStatusResult("OK", nil))

	cache.Set("k", []byte("v"), models.TTL{Fresh: time.Hour, Stale: time.Hour}, nil)
}

func TestKeyDBCache_Set_ErrorSkipsIndex(t *testing.T) {
	cache, mockClient := newTestCache(t)

	mockClient.EXPECT().Set(gomock.Any(), "k", gomock.Any(), gomock.Any()).
		Return(redis.NewStatusResult("", errors.New("write failed")))
	// No SAdd expected

	cache.Set("k", []byte("v"), models.TTL{Fresh: time.Minute}, []string{"games"})
}

func TestKeyDBCache_Delete(t *testing.T) {
	cache, mockClient := newTestCache(t)

	mockClient.EXPECT().Del(gomock.Any(), "k").Return(redis.NewIntResult(1, nil))
	cache.Delete("k")
}

func TestKeyDBCache_PurgeTags(t *testing.T) {
	cache, mockClient := newTestCache(t)

	gomock.InOrder(
		mockClient.EXPECT().SMembers(gomock.Any(), "tag:games").
			Return(redis.NewStringSliceResult([]string{"k1", "k2"}, nil)),
		mockClient.EXPECT().SMembers(gomock.Any(), "tag:projections").
			Return(redis.NewStringSliceResult([]string{"k2", "k3"}, nil)),
		mockClient.EXPECT().Del(gomock.Any(), "k1", "k2", "k3").Return(redis.NewIntResult(3, nil)),
		mockClient.EXPECT().Del(gomock.Any(), "tag:games", "tag:projections").Return(redis.NewIntResult(2, nil)),
	)

	count, err := cache.PurgeTags([]string{"games", "projections"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestKeyDBCache_PurgeTags_Empty(t *testing.T) {
	cache, mockClient := newTestCache(t)

	mockClient.EXPECT().SMembers(gomock.Any(), "tag:teams").Return(redis.NewStringSliceResult(nil, nil))
	mockClient.EXPECT().Del(gomock.Any(), "tag:teams").Return(redis.NewIntResult(0, nil))

	count, err := cache.PurgeTags([]string{"teams"})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestKeyDBCache_PurgeTags_Error(t *testing.T) {
	cache, mockClient := newTestCache(t)

	mockClient.EXPECT().SMembers(gomock.Any(), "tag:games").
		Return(redis.NewStringSliceResult(nil, errors.New("connection reset")))

	_, err := cache.PurgeTags([]string{"games"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag 'games'")
}

func TestKeyDBCache_Close(t *testing.T) {
	cache, mockClient := newTestCache(t)

	mockClient.EXPECT().Close().Return(nil)
	assert.NoError(t, cache.Close())
}

func TestParseKeyDBURL(t *testing.T) {
	cfg := config.Default()

	opts, err := ParseKeyDBURL("redis://:secret@keydb:6380/2", cfg)
	require.NoError(t, err)
	assert.Equal(t, "keydb:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, cfg.GetReadTimeout(), opts.ReadTimeout)
	assert.Equal(t, cfg.L2.Keepalive.PoolSize, opts.PoolSize)

	opts, err = ParseKeyDBURL("redis://keydb", cfg)
	require.NoError(t, err)
	assert.Equal(t, "keydb:6379", opts.Addr)
	assert.Equal(t, 0, opts.DB)

	for _, bad := range []string{"http://keydb:6379", "redis://", "redis://keydb/notanumber", "::"} {
		_, err := ParseKeyDBURL(bad, cfg)
		assert.Error(t, err, bad)
	}
}
