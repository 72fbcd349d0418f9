// Package cache provides a bounded LRU of fixed-width values keyed by byte
// strings, used as a read cache in front of an index.
package cache

import (
	"sync"
	"time"
)

// Stats provides statistics about cache operations
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	HitRatio  float64 `json:"hit_ratio"`
}

// LRU is a least recently used cache with optional expiry. It is safe for
// concurrent use.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry
	head     *entry
	tail     *entry

	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// NewLRU creates a cache holding at most capacity entries. A positive ttl
// expires entries that long after they were last written.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1000
	}

	c := &LRU{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry, capacity),
	}

	// sentinel head and tail
	c.head = &entry{}
	c.tail = &entry{}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get copies the cached value for key into out and reports whether it was
// present.
func (c *LRU) Get(key []byte, out []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[string(key)]
	if !ok {
		c.misses++
		return false
	}
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		c.misses++
		return false
	}

	c.moveToFront(e)
	c.hits++
	copy(out, e.value)
	return true
}

// Put stores a copy of value under key, evicting the least recently used
// entry when full.
func (c *LRU) Put(key, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}

	if e, ok := c.items[string(key)]; ok {
		e.value = append(e.value[:0], value...)
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{
		key:       string(key),
		value:     append([]byte(nil), value...),
		expiresAt: expiresAt,
	}
	c.addToFront(e)
	c.items[e.key] = e

	if len(c.items) > c.capacity {
		c.evictLRU()
	}
}

// Delete drops key and reports whether it was cached.
func (c *LRU) Delete(key []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[string(key)]
	if !ok {
		return false
	}
	c.removeEntry(e)
	return true
}

// Len is the number of cached entries, expired ones included.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries and resets the counters.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	ratio := 0.0
	if total := c.hits + c.misses; total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.items),
		Capacity:  c.capacity,
		HitRatio:  ratio,
	}
}

func (c *LRU) moveToFront(e *entry) {
	c.unlink(e)
	c.addToFront(e)
}

func (c *LRU) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *LRU) removeEntry(e *entry) {
	delete(c.items, e.key)
	c.unlink(e)
}

func (c *LRU) evictLRU() {
	if c.tail.prev == c.head {
		return
	}
	c.removeEntry(c.tail.prev)
	c.evictions++
}
