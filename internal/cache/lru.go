// Package cache provides a small in-process LRU cache with entry expiry.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config bounds the cache.
type Config struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// LRU is a thread-safe least-recently-used cache. Entries older than TTL
// are treated as missing and dropped on access.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	config    Config
	items     map[K]*list.Element
	evictList *list.List
	stats     Stats
	now       func() time.Time
}

// NewLRU creates a cache holding at most MaxEntries values (default 128).
// A zero TTL keeps entries until they are evicted.
func NewLRU[K comparable, V any](config Config) *LRU[K, V] {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 128
	}
	return &LRU[K, V]{
		config:    config,
		items:     make(map[K]*list.Element),
		evictList: list.New(),
		now:       time.Now,
	}
}

// Get returns the value for key and whether it was present.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.removeElement(el)
		c.stats.Misses++
		return zero, false
	}
	c.evictList.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.config.TTL > 0 {
		expires = c.now().Add(c.config.TTL)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expires = expires
		c.evictList.MoveToFront(el)
		return
	}

	c.items[key] = c.evictList.PushFront(&entry[K, V]{key: key, value: value, expires: expires})
	for c.evictList.Len() > c.config.MaxEntries {
		c.removeElement(c.evictList.Back())
		c.stats.Evictions++
	}
}

// Delete drops key if present.
func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of entries, expired ones included.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns a snapshot of the counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.evictList.Len()
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// must be called with lock held
func (c *LRU[K, V]) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}
