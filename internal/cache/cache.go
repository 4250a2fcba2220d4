// internal/cache/cache.go
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// TTL is an in-memory byte cache with per-entry expiry. It is the only
// mutable state shared across requests.
type TTL struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewTTL creates an empty cache.
func NewTTL() *TTL {
	return &TTL{entries: make(map[string]entry)}
}

// Get returns the cached value for key, or false when the key is absent or
// its entry has expired. Expired entries are removed on access.
func (c *TTL) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given freshness window.
func (c *TTL) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}
