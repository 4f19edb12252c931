package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTTL is applied when Set is called with a non-positive ttl.
const DefaultTTL = 15 * time.Minute

type entry struct {
	data     any
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Cache is an in-memory expiring key-value store with an LRU size bound.
// Get and Cleanup share the same expiry predicate; an expired entry is
// evicted on read, so Get never returns data older than its ttl.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, *entry]

	now func() time.Time
}

// Stats describes the live contents of the cache, for diagnostics only.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

func New(size int) (*Cache, error) {
	l, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, now: time.Now}, nil
}

// Get returns the value stored under key if it is still fresh. Reading an
// expired entry evicts it as a side effect.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.data, true
}

// Set stores val under key for ttl; a non-positive ttl selects DefaultTTL.
// Last write wins.
func (c *Cache) Set(key string, val any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &entry{
		data:     val,
		storedAt: c.now(),
		ttl:      ttl,
	})
}

// Delete removes key unconditionally; absent keys are not an error.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size: c.lru.Len(),
		Keys: c.lru.Keys(),
	}
}

// Cleanup eagerly sweeps every expired entry and returns how many were
// evicted. The owning process is expected to call this on a timer; entries
// are still evicted lazily on Get regardless.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var evicted int
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if e.expired(now) {
			c.lru.Remove(key)
			evicted++
		}
	}
	return evicted
}
