package docforge

import (
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// CacheStats is a hit/miss snapshot for observability.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// cacheEntry is one memoized processed fragment.
type cacheEntry struct {
	payload   any
	createdAt time.Time
	size      int64
}

// ContentCache memoizes processed and rendered document fragments keyed
// by a content+options fingerprint. Entries expire after a TTL and the
// entry count is capacity-bounded; insertion beyond the bound evicts the
// least-recently-created entry.
type ContentCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      []string // insertion order, oldest first
	maxEntries int
	ttl        time.Duration
	hits       uint64
	misses     uint64
	now        func() time.Time
}

// NewContentCache creates a cache with the given TTL and capacity bound.
// Non-positive arguments fall back to package defaults.
func NewContentCache(ttl time.Duration, maxEntries int) *ContentCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &ContentCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Configure adjusts the TTL and capacity bound for subsequent operations.
// Non-positive arguments fall back to package defaults. Shrinking the
// bound evicts oldest-created entries immediately.
func (c *ContentCache) Configure(ttl time.Duration, maxEntries int) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
	c.maxEntries = maxEntries
	for len(c.entries) > c.maxEntries {
		c.removeLocked(c.order[0])
	}
}

// Get returns the cached payload for key. Entries older than the TTL are
// never served: a stale entry counts as a miss and is dropped.
func (c *ContentCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		c.removeLocked(key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.payload, true
}

// Put inserts a payload, evicting the oldest-created entry when the
// capacity bound is exceeded.
func (c *ContentCache) Put(key string, payload any, approxSize int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.removeLocked(key)
	}
	c.entries[key] = &cacheEntry{payload: payload, createdAt: c.now(), size: approxSize}
	c.order = append(c.order, key)
	for len(c.entries) > c.maxEntries {
		c.removeLocked(c.order[0])
	}
}

// Expire drops all entries older than the TTL and returns how many were
// removed.
func (c *ContentCache) Expire() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for i := 0; i < len(c.order); {
		key := c.order[i]
		if e, ok := c.entries[key]; ok && e.createdAt.Before(cutoff) {
			c.removeLocked(key)
			removed++
			continue // order shrank in place, re-check index i
		}
		i++
	}
	return removed
}

// Clear drops every entry. Hit/miss counters are kept.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

// Len returns the current entry count.
func (c *ContentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a hit/miss snapshot.
func (c *ContentCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// ApproximateSizeBytes sums the recorded sizes of all live entries.
func (c *ContentCache) ApproximateSizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, e := range c.entries {
		total += e.size
	}
	return total
}

// removeLocked drops one entry and its order slot. Callers hold c.mu.
func (c *ContentCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Fingerprint computes a deterministic content-addressed key from the
// serialized content and any render-affecting option strings.
func Fingerprint(content string, options ...string) string {
	h := xxhash.New()
	_, _ = h.WriteString(content)
	for _, opt := range options {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(opt)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
