package datasource

import (
	"sync"
	"time"
)

// Cache is a cross-request option cache keyed by the fully-rendered
// query string. It is a plain key -> (value, expiry) store with no
// invalidation beyond TTL expiry, constructed per process and passed by
// reference.
type Cache struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	records []OptionRecord
	expiry  time.Time
}

// NewCache creates a cache with the given TTL. A zero TTL disables
// caching entirely.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now}
}

// Get returns the cached records for a key if present and fresh.
func (c *Cache) Get(key string) ([]OptionRecord, bool) {
	if c == nil || c.ttl == 0 {
		return nil, false
	}
	raw, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	entry := raw.(cacheEntry)
	if c.now().After(entry.expiry) {
		c.entries.Delete(key)
		return nil, false
	}
	return entry.records, true
}

// Put stores records under a key until the TTL elapses.
func (c *Cache) Put(key string, records []OptionRecord) {
	if c == nil || c.ttl == 0 {
		return
	}
	c.entries.Store(key, cacheEntry{records: records, expiry: c.now().Add(c.ttl)})
}
