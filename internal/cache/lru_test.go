package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	_, _ = c.Get("a") // a becomes most recent
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", 1)
	c.Set("j", 2)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestLRUCachePurgeAndDelete(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	assert.Equal(t, 1, c.Size())

	c.Purge()
	assert.Equal(t, 0, c.Size())
	c.Set("c", 3)
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestManagerCleanNow(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](10, time.Millisecond)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(time.Second)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 1, m.CleanNow())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
