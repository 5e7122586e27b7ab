package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(start time.Time) (*TTLCache, *time.Time) {
	current := start
	c := New()
	c.now = func() time.Time { return current }
	return c, &current
}

func TestSetGetRoundtrip(t *testing.T) {
	c, _ := newTestCache(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	c.Set("k", "v", time.Minute)
	value, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", value)
	assert.Equal(t, 1, c.Len())
}

func TestGetMissOnAbsentKey(t *testing.T) {
	c, _ := newTestCache(time.Now())

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestEntryExpires(t *testing.T) {
	c, now := newTestCache(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	c.Set("k", 42, time.Minute)

	*now = now.Add(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	*now = now.Add(time.Second) // exactly at expiry
	_, ok = c.Get("k")
	assert.False(t, ok)

	// Expired entry was dropped on read.
	assert.Equal(t, 0, c.Len())
}

func TestSetRefreshesExpiry(t *testing.T) {
	c, now := newTestCache(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	c.Set("k", "old", time.Minute)
	*now = now.Add(30 * time.Second)
	c.Set("k", "new", time.Minute)

	*now = now.Add(45 * time.Second)
	value, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", value)
}

func TestNonPositiveTTLIsNoop(t *testing.T) {
	c, _ := newTestCache(time.Now())

	c.Set("zero", "v", 0)
	c.Set("negative", "v", -time.Second)
	assert.Equal(t, 0, c.Len())
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(time.Now())

	c.Set("k", "v", time.Minute)
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestPurgeDropsOnlyExpired(t *testing.T) {
	c, now := newTestCache(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	*now = now.Add(time.Minute)
	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())

	value, ok := c.Get("long")
	require.True(t, ok)
	assert.Equal(t, 2, value)
}
