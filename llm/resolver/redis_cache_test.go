package resolver

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) *redisCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return newRedisCache(client, time.Hour, "test:")
}

func TestRedisCache_SetGet(t *testing.T) {
	c := newTestRedisCache(t)

	_, ok := c.get("https://example.com/a")
	assert.False(t, ok)

	c.set("https://example.com/a", "https://example.com/resolved")
	resolved, ok := c.get("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/resolved", resolved)
}

func TestRedisCache_NullResolution(t *testing.T) {
	c := newTestRedisCache(t)

	c.set("https://example.com/unresolved", "")
	resolved, ok := c.get("https://example.com/unresolved")
	require.True(t, ok)
	assert.Equal(t, "", resolved)
}

func TestNewWithRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := DefaultConfig()
	cfg.Enabled = true
	r := NewWithRedisCache(cfg, client, "", nil)

	require.NotNil(t, r)
	rc, ok := r.cache.(*redisCache)
	require.True(t, ok)
	assert.Equal(t, "llmrouter:resolver:", rc.keyPrefix)
}
