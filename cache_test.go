package ftputil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatCacheInsertLookup(t *testing.T) {
	c := newStatCache(10, time.Minute)
	rec := &StatRecord{Name: "a"}
	c.Insert("/a", rec)
	got, ok := c.Lookup("/a")
	require.True(t, ok)
	assert.Same(t, rec, got)
}

func TestStatCacheMiss(t *testing.T) {
	c := newStatCache(10, time.Minute)
	_, ok := c.Lookup("/missing")
	assert.False(t, ok)
}

func TestStatCacheExpiry(t *testing.T) {
	c := newStatCache(10, time.Millisecond)
	c.Insert("/a", &StatRecord{Name: "a"})
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Lookup("/a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestStatCacheEvictsOldestOnCapacity(t *testing.T) {
	c := newStatCache(2, time.Minute)
	c.Insert("/a", &StatRecord{Name: "a"})
	c.Insert("/b", &StatRecord{Name: "b"})
	c.Insert("/c", &StatRecord{Name: "c"})
	_, ok := c.Lookup("/a")
	assert.False(t, ok)
	_, ok = c.Lookup("/c")
	assert.True(t, ok)
}

func TestStatCacheDisable(t *testing.T) {
	c := newStatCache(10, time.Minute)
	c.Disable()
	c.Insert("/a", &StatRecord{Name: "a"})
	_, ok := c.Lookup("/a")
	assert.False(t, ok)
	c.Enable()
	c.Insert("/a", &StatRecord{Name: "a"})
	_, ok = c.Lookup("/a")
	assert.True(t, ok)
}

func TestStatCacheInvalidateAndClear(t *testing.T) {
	c := newStatCache(10, time.Minute)
	c.Insert("/a", &StatRecord{Name: "a"})
	c.Invalidate("/a")
	_, ok := c.Lookup("/a")
	assert.False(t, ok)

	c.Insert("/a", &StatRecord{Name: "a"})
	c.Insert("/b", &StatRecord{Name: "b"})
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
