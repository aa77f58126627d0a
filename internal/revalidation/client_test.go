package revalidation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-stats-cache/internal/models"
)

type recordingInvalidator struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recordingInvalidator) Invalidate(tags []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tags)
}

func TestClient_Invalidate(t *testing.T) {
	var received models.InvalidationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/revalidate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"revalidated":true,"timestamp":42,"tags":["games"]}`))
	}))
	defer server.Close()

	local := &recordingInvalidator{}
	client := NewClient(server.URL+"/", server.Client(), local, zap.NewNop())

	result, err := client.Invalidate(context.Background(), []string{"games"})
	require.NoError(t, err)
	assert.True(t, result.Revalidated)
	assert.Equal(t, int64(42), result.Timestamp)
	assert.Equal(t, []string{"games"}, received.Tags)
	assert.Equal(t, [][]string{{"games"}}, local.calls)
}

func TestClient_Invalidate_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid tags: weather"}`))
	}))
	defer server.Close()

	local := &recordingInvalidator{}
	client := NewClient(server.URL, server.Client(), local, zap.NewNop())

	_, err := client.Invalidate(context.Background(), []string{"weather"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "Invalid tags: weather")
	// Local subscribers still converge
	assert.Len(t, local.calls, 1)
}

func TestClient_Invalidate_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	local := &recordingInvalidator{}
	client := NewClient(url, nil, local, zap.NewNop())

	_, err := client.Invalidate(context.Background(), []string{"games"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to call revalidation endpoint")
	assert.Len(t, local.calls, 1)
}
