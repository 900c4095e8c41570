// Package cache provides short-TTL memoization for read-heavy catalog
// queries. Entries live only in process memory; invalidation by prefix is
// synchronous so a successful write is never followed by a stale read.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// CatalogPrefix namespaces every catalog read key. All product writes
// invalidate this prefix before reporting success.
const CatalogPrefix = "catalog:"

// CatalogKey derives a cache key from the semantic parameters of a catalog
// query. It is a pure function, so distinct queries never collide.
func CatalogKey(includeInactive bool, limit, offset int) string {
	return fmt.Sprintf("%sinactive=%t;limit=%d;offset=%d", CatalogPrefix, includeInactive, limit, offset)
}

type entry struct {
	payload  any
	storedAt time.Time
}

// Cache is a mutex-guarded TTL map. It is advisory: callers compute from the
// store on miss and must not cache failures.
type Cache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry

	now func() time.Time
}

// New creates a Cache whose entries expire after ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached payload for key and whether it was a hit.
// Expired entries are removed on access.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.payload, true
}

// Put stores payload under key with a fresh timestamp.
func (c *Cache) Put(key string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{payload: payload, storedAt: c.now()}
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns the number of entries removed.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Len reports the current number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
