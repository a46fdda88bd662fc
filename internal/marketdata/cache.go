package marketdata

import (
	"encoding/json"
	"sync"
	"time"
)

// cacheEntry is a JSON blob with an expiry, matching spec.md §4.2's
// "Redis-shaped, but the contract is key->JSON with TTL" description.
// The in-process map stands in for Redis; swapping to a real client
// only touches this file.
type cacheEntry struct {
	payload []byte
	expires time.Time
}

// Cache is a content-addressed, TTL-expiring store keyed by an
// arbitrary string (symbol+kind+params hash).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get unmarshals the cached value for key into out, reporting false if
// the key is absent or expired.
func (c *Cache) Get(key string, out interface{}) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return false
	}
	return json.Unmarshal(entry.payload, out) == nil
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{payload: payload, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Len reports the number of entries currently stored, expired or not;
// used by Warmup bookkeeping and tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
