package noop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

func TestNewNoOpCache(t *testing.T) {
	cache := NewNoOpCache()

	var _ interfaces.Cache = cache
	_, ok := cache.(*NoOpCache)
	assert.True(t, ok)
}

func TestNoOpCache_AlwaysMisses(t *testing.T) {
	cache := NewNoOpCache()

	for _, key := range []string{"/api/teams:{}", "", "key-with-special-characters-!@#$%^&*()"} {
		cache.Set(key, []byte("value"), models.TTL{Fresh: time.Hour, Stale: time.Hour}, []string{"teams"})

		entry, found := cache.Get(key)
		assert.False(t, found)
		assert.Nil(t, entry)

		entry, found = cache.GetStale(key)
		assert.False(t, found)
		assert.Nil(t, entry)

		cache.Delete(key)
	}
}

func TestNoOpCache_PurgeTags(t *testing.T) {
	count, err := NewNoOpCache().PurgeTags([]string{"games", "teams"})
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}
