// internal/cache/result_cache.go
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/plantworks/filteropt/internal/filter"
)

// Defaults
const (
	DefaultCapacity = 100
	DefaultTTL      = 5 * time.Minute
)

// Config configures a result cache.
type Config struct {
	Capacity int
	TTL      time.Duration
}

// ApplyDefaults fills in default values.
func (c *Config) ApplyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
}

// entry is a cached result. Entries never leave the cache; callers only
// receive the data value.
type entry[T any] struct {
	fingerprint  string
	data         T
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  uint64
}

// ResultCache maps a criteria fingerprint to a previously computed result,
// with LRU-by-access eviction and TTL expiry. Safe for concurrent use.
type ResultCache[T any] struct {
	mu      sync.Mutex
	config  Config
	items   map[string]*list.Element
	lruList *list.List
	now     func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

// New creates a result cache with the given configuration.
func New[T any](config Config) *ResultCache[T] {
	config.ApplyDefaults()
	return &ResultCache[T]{
		config:  config,
		items:   make(map[string]*list.Element),
		lruList: list.New(),
		now:     time.Now,
	}
}

// Get returns the cached result for the criteria, if present and unexpired.
// An expired entry is evicted and counted as a miss.
func (c *ResultCache[T]) Get(criteria filter.Criteria) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	key := criteria.Fingerprint()
	elem, exists := c.items[key]
	if !exists {
		c.misses++
		return zero, false
	}

	e := elem.Value.(*entry[T])
	if c.now().Sub(e.createdAt) > c.config.TTL {
		c.removeLocked(elem, e)
		c.misses++
		return zero, false
	}

	c.lruList.MoveToFront(elem)
	e.lastAccessed = c.now()
	e.accessCount++
	c.hits++
	return e.data, true
}

// Set stores a result for the criteria, evicting the least recently
// accessed entry first when the cache is at capacity.
func (c *ResultCache[T]) Set(criteria filter.Criteria, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := criteria.Fingerprint()
	now := c.now()

	if elem, exists := c.items[key]; exists {
		c.lruList.MoveToFront(elem)
		e := elem.Value.(*entry[T])
		e.data = data
		e.createdAt = now
		e.lastAccessed = now
		return
	}

	if c.lruList.Len() >= c.config.Capacity {
		c.evictOldestLocked()
	}

	e := &entry[T]{
		fingerprint:  key,
		data:         data,
		createdAt:    now,
		lastAccessed: now,
	}
	c.items[key] = c.lruList.PushFront(e)
}

// Invalidate removes every entry.
func (c *ResultCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lruList = list.New()
}

// InvalidateCriteria removes the exact-fingerprint match, if any. Related
// or overlapping criteria are not touched.
func (c *ResultCache[T]) InvalidateCriteria(criteria filter.Criteria) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := criteria.Fingerprint()
	elem, exists := c.items[key]
	if !exists {
		return false
	}
	c.removeLocked(elem, elem.Value.(*entry[T]))
	return true
}

// evictOldestLocked removes the entry whose lastAccessed is oldest. The LRU
// list keeps most recently accessed entries at the front, so the back is
// always the eviction candidate.
func (c *ResultCache[T]) evictOldestLocked() {
	elem := c.lruList.Back()
	if elem == nil {
		return
	}
	c.removeLocked(elem, elem.Value.(*entry[T]))
	c.evictions++
}

func (c *ResultCache[T]) removeLocked(elem *list.Element, e *entry[T]) {
	c.lruList.Remove(elem)
	delete(c.items, e.fingerprint)
}

// Stats holds cache statistics.
type Stats struct {
	Size        int       `json:"size"`
	Capacity    int       `json:"capacity"`
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Evictions   int64     `json:"evictions"`
	HitRate     float64   `json:"hit_rate"`
	OldestEntry time.Time `json:"oldest_entry,omitempty"`
	NewestEntry time.Time `json:"newest_entry,omitempty"`
}

// Stats returns a snapshot computed from the current entries and counters.
func (c *ResultCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:      c.lruList.Len(),
		Capacity:  c.config.Capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[T])
		if s.OldestEntry.IsZero() || e.createdAt.Before(s.OldestEntry) {
			s.OldestEntry = e.createdAt
		}
		if e.createdAt.After(s.NewestEntry) {
			s.NewestEntry = e.createdAt
		}
	}
	return s
}

// Len returns the current entry count.
func (c *ResultCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}
