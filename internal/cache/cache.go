// Package cache provides a size-bounded in-memory TTL store with
// tag-based invalidation and an explicit stale-read path for degraded
// fallback serving.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/marketsrc/hermes/internal/core"
)

// DefaultMaxEntries bounds the cache when no limit is configured.
const DefaultMaxEntries = 4096

// Stats holds monotonically increasing counters since process start,
// plus the current entry count.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
}

type entry struct {
	key        string
	value      any
	tags       []string
	expiresAt  time.Time
	insertedAt time.Time
	elem       *list.Element
}

// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	byTag      map[string]map[string]struct{}
	lru        *list.List // front = most recently used
	maxEntries int

	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time
}

// New creates a cache holding at most maxEntries values.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]*entry),
		byTag:      make(map[string]map[string]struct{}),
		lru:        list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Key derives a cache key from kind, symbol, and extra parameters.
// Convention: "kind:symbol:param1:param2".
func Key(kind core.DataKind, symbol string, params ...string) string {
	parts := make([]string, 0, 2+len(params))
	parts = append(parts, string(kind), symbol)
	parts = append(parts, params...)
	return strings.Join(parts, ":")
}

// Get returns a fresh value. An entry past its TTL is a miss here but
// remains retrievable via GetStale until replaced or evicted.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		c.misses++
		return nil, false
	}

	c.lru.MoveToFront(e.elem)
	c.hits++
	return e.value, true
}

// GetStale returns the most recently stored value for the key even if
// expired. It is used only by the router's degraded-fallback path and
// does not touch hit/miss counters or LRU order.
func (c *Cache) GetStale(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the given TTL and tags, replacing any existing
// entry for the key. At capacity the least-recently-used entry is
// evicted first (LRU order breaks ties by earliest insertion).
func (c *Cache) Set(key string, value any, ttl time.Duration, tags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(old)
	} else if len(c.entries) >= c.maxEntries {
		if back := c.lru.Back(); back != nil {
			c.removeLocked(back.Value.(*entry))
			c.evictions++
		}
	}

	e := &entry{
		key:        key,
		value:      value,
		tags:       tags,
		expiresAt:  now.Add(ttl),
		insertedAt: now,
	}
	e.elem = c.lru.PushFront(e)
	c.entries[key] = e
	for _, tag := range tags {
		keys, ok := c.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// Invalidate removes every entry carrying the tag and returns how many
// were dropped.
func (c *Cache) Invalidate(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.byTag[tag]
	if !ok {
		return 0
	}

	removed := 0
	for key := range keys {
		if e, ok := c.entries[key]; ok {
			c.removeLocked(e)
			removed++
		}
	}
	return removed
}

// Stats reports counters since process start.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
}

// removeLocked drops an entry from the map, the LRU list, and the tag
// index. Caller holds c.mu.
func (c *Cache) removeLocked(e *entry) {
	delete(c.entries, e.key)
	c.lru.Remove(e.elem)
	for _, tag := range e.tags {
		if keys, ok := c.byTag[tag]; ok {
			delete(keys, e.key)
			if len(keys) == 0 {
				delete(c.byTag, tag)
			}
		}
	}
}
