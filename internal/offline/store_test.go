package offline

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-stats-cache/internal/models"
)

func openTestLayer(t *testing.T, path, generation string) (*Layer, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.UnixMilli(1_700_000_000_000))
	layer, err := Open(path, generation, clk, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = layer.Close() })
	return layer, clk
}

func TestOpen_RequiresPathAndGeneration(t *testing.T) {
	_, err := Open("", "v1", nil, zap.NewNop())
	assert.Error(t, err)

	_, err = Open(filepath.Join(t.TempDir(), "offline.db"), " ", nil, zap.NewNop())
	assert.Error(t, err)
}

func TestLayer_WriteRead(t *testing.T) {
	layer, clk := openTestLayer(t, filepath.Join(t.TempDir(), "offline.db"), "v1")
	ctx := context.Background()
	req := models.NewOfflineRequest("", "http://edge/api/teams")

	err := layer.Write(ctx, req, models.OfflineResponse{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        []byte(`{"success":true,"data":[]}`),
	})
	require.NoError(t, err)

	resp, err := layer.Read(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.Equal(t, `{"success":true,"data":[]}`, string(resp.Body))
	assert.True(t, clk.Now().Equal(resp.StoredAt))
}

func TestLayer_ReadMissing(t *testing.T) {
	layer, _ := openTestLayer(t, filepath.Join(t.TempDir(), "offline.db"), "v1")

	_, err := layer.Read(context.Background(), models.NewOfflineRequest(http.MethodGet, "http://edge/none"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestLayer_WriteOverwrites(t *testing.T) {
	layer, _ := openTestLayer(t, filepath.Join(t.TempDir(), "offline.db"), "v1")
	ctx := context.Background()
	req := models.NewOfflineRequest(http.MethodGet, "http://edge/api/players")

	require.NoError(t, layer.Write(ctx, req, models.OfflineResponse{Status: 200, Body: []byte("one")}))
	require.NoError(t, layer.Write(ctx, req, models.OfflineResponse{Status: 200, Body: []byte("three")}))

	resp, err := layer.Read(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "three", string(resp.Body))

	entries, err := layer.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "GET http://edge/api/players", entries[0].Key)
	assert.Equal(t, int64(5), entries[0].SizeBytes)
	assert.Equal(t, "v1", entries[0].Generation)
}

func TestLayer_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")
	ctx := context.Background()
	req := models.NewOfflineRequest(http.MethodGet, "http://edge/offline")

	first, err := Open(path, "v1", nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, req, models.OfflineResponse{Status: 200, Body: []byte("page")}))
	require.NoError(t, first.Close())

	second, _ := openTestLayer(t, path, "v1")
	resp, err := second.Read(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "page", string(resp.Body))
}

func TestLayer_EvictStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")
	ctx := context.Background()

	old, err := Open(path, "v1", nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, old.Write(ctx, models.NewOfflineRequest(http.MethodGet, "http://edge/a"), models.OfflineResponse{Status: 200, Body: []byte("a")}))
	require.NoError(t, old.Write(ctx, models.NewOfflineRequest(http.MethodGet, "http://edge/b"), models.OfflineResponse{Status: 200, Body: []byte("b")}))
	require.NoError(t, old.Close())

	current, _ := openTestLayer(t, path, "v2")
	require.NoError(t, current.Write(ctx, models.NewOfflineRequest(http.MethodGet, "http://edge/b"), models.OfflineResponse{Status: 200, Body: []byte("b2")}))

	// Entries of a superseded generation are not readable
	_, err = current.Read(ctx, models.NewOfflineRequest(http.MethodGet, "http://edge/a"))
	assert.True(t, errors.Is(err, models.ErrNotFound))

	removed, err := current.EvictStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err := current.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "GET http://edge/b", entries[0].Key)
	assert.Equal(t, "v2", entries[0].Generation)
}
