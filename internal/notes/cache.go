package notes

import (
	"sync"
	"time"
)

// queryCache remembers recent query embeddings so repeated searches do not
// re-bill the embedding endpoint. Entries expire after a fixed TTL; when the
// cache is full the oldest entry makes room.
type queryCache struct {
	mu      sync.Mutex
	entries map[string]*queryCacheEntry
	ttl     time.Duration
	max     int
}

type queryCacheEntry struct {
	vec       []float32
	expiresAt time.Time
}

func newQueryCache(ttl time.Duration, max int) *queryCache {
	return &queryCache{
		entries: make(map[string]*queryCacheEntry),
		ttl:     ttl,
		max:     max,
	}
}

// get returns the cached vector for a query, treating expired entries as
// misses and dropping them.
func (c *queryCache) get(query string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[query]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, query)
		return nil, false
	}
	return entry.vec, true
}

// set caches a query vector, evicting expired entries first and then the
// entry closest to expiry if the cache is still full.
func (c *queryCache) set(query string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}

	if len(c.entries) >= c.max {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.expiresAt.Before(oldest) {
				oldestKey = k
				oldest = e.expiresAt
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[query] = &queryCacheEntry{
		vec:       vec,
		expiresAt: now.Add(c.ttl),
	}
}
