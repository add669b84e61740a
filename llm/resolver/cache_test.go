package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := newTTLCache(time.Hour, 10)

	_, ok := c.get("https://example.com/a")
	assert.False(t, ok)

	c.set("https://example.com/a", "https://example.com/resolved")
	resolved, ok := c.get("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/resolved", resolved)
}

func TestTTLCache_NullResolutionIsCachedDistinctlyFromMiss(t *testing.T) {
	c := newTTLCache(time.Hour, 10)

	c.set("https://example.com/unresolved", "")
	resolved, ok := c.get("https://example.com/unresolved")
	require.True(t, ok)
	assert.Equal(t, "", resolved)
}

func TestTTLCache_ExpiredEntryIsTreatedAsMiss(t *testing.T) {
	c := newTTLCache(10*time.Millisecond, 10)
	c.set("https://example.com/a", "https://example.com/resolved")

	time.Sleep(30 * time.Millisecond)

	_, ok := c.get("https://example.com/a")
	assert.False(t, ok)
}

func TestTTLCache_EvictsOldestWhenFull(t *testing.T) {
	c := newTTLCache(time.Hour, 2)

	c.set("first", "1")
	time.Sleep(2 * time.Millisecond)
	c.set("second", "2")
	time.Sleep(2 * time.Millisecond)
	c.set("third", "3")

	_, ok := c.get("first")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.get("second")
	assert.True(t, ok)
	_, ok = c.get("third")
	assert.True(t, ok)
}
