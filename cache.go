package ftputil

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCacheCapacity is the default bound on the number of entries
// the stat cache holds before evicting the least-recently-inserted
// one (§3: CacheEntry, default 5,000).
const DefaultCacheCapacity = 5000

// DefaultCacheTTL is the default time-to-live for a cache entry (§4.D:
// default 60s).
const DefaultCacheTTL = 60 * time.Second

type cacheItem struct {
	path      string
	record    *StatRecord
	insertedAt time.Time
}

// statCache is a bounded, insertion-ordered map from absolute-
// normalized path to StatRecord, evicting the least-recently-inserted
// entry once over capacity, and treating entries older than the TTL as
// misses (evicting them on lookup). While disabled, for callers working
// against a live-updating directory, lookups always miss and inserts
// are dropped; Invalidate and Clear still act on the stored entries.
type statCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	enabled  bool

	order   *list.List               // of *cacheItem, oldest-inserted at front
	byPath  map[string]*list.Element // path -> element in order
}

func newStatCache(capacity int, ttl time.Duration) *statCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &statCache{
		capacity: capacity,
		ttl:      ttl,
		enabled:  true,
		order:    list.New(),
		byPath:   make(map[string]*list.Element),
	}
}

// Enable turns the cache on.
func (c *statCache) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
}

// Disable turns the cache off; subsequent lookups always miss and
// inserts are no-ops until re-enabled.
func (c *statCache) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

// Enabled reports whether the cache is currently active.
func (c *statCache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Lookup returns the cached record for path, or (nil, false) on a
// miss. An expired entry is evicted and counted as a miss.
func (c *statCache) Lookup(path string) (*StatRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil, false
	}
	el, ok := c.byPath[path]
	if !ok {
		return nil, false
	}
	item := el.Value.(*cacheItem)
	if time.Since(item.insertedAt) > c.ttl {
		c.removeElement(el)
		return nil, false
	}
	return item.record, true
}

// Insert adds or replaces the record for path, evicting the oldest
// entry if this insert would exceed capacity.
func (c *statCache) Insert(path string, record *StatRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if el, ok := c.byPath[path]; ok {
		c.removeElement(el)
	}
	item := &cacheItem{path: path, record: record, insertedAt: time.Now()}
	el := c.order.PushBack(item)
	c.byPath[path] = el
	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Front())
	}
}

// Invalidate removes the entry for path, if present. No-op if absent.
func (c *statCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byPath[path]; ok {
		c.removeElement(el)
	}
}

// Clear empties the cache.
func (c *statCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.byPath = make(map[string]*list.Element)
}

// Len returns the number of entries currently cached (for tests).
func (c *statCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// removeElement must be called with c.mu held.
func (c *statCache) removeElement(el *list.Element) {
	item := el.Value.(*cacheItem)
	delete(c.byPath, item.path)
	c.order.Remove(el)
}
