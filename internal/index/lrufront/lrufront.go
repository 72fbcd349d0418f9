// Package lrufront puts a write-through LRU read cache in front of another
// index.
package lrufront

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"kvbench/internal/cache"
	"kvbench/internal/index"
)

const Name = "lru"

// lockStripes serialize cache fills against writes of the same key.
const lockStripes = 256

func init() {
	index.Register(Name, func(cfg index.Config) (index.Index, error) {
		innerName := cfg.Option("inner", "btreemap")
		if innerName == Name {
			return nil, fmt.Errorf("lru index cannot wrap itself")
		}
		capacity, err := strconv.Atoi(cfg.Option("capacity", "100000"))
		if err != nil || capacity <= 0 {
			return nil, fmt.Errorf("invalid lru capacity option: %q", cfg.Option("capacity", ""))
		}
		ttl, err := time.ParseDuration(cfg.Option("ttl", "0s"))
		if err != nil {
			return nil, fmt.Errorf("invalid lru ttl option: %w", err)
		}
		inner, err := index.Open(innerName, cfg)
		if err != nil {
			return nil, err
		}
		return New(inner, capacity, ttl), nil
	})
}

// Cached wraps an index with an LRU of recently read or written values.
type Cached struct {
	inner index.Index
	lru   *cache.LRU
	locks [lockStripes]sync.Mutex
}

var (
	_ index.Index      = (*Cached)(nil)
	_ index.BulkLoader = (*Cached)(nil)
)

func New(inner index.Index, capacity int, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		lru:   cache.NewLRU(capacity, ttl),
	}
}

func (c *Cached) lock(key []byte) *sync.Mutex {
	return &c.locks[murmur3.Sum32(key)%lockStripes]
}

func (c *Cached) Find(key []byte, valueOut []byte) bool {
	if c.lru.Get(key, valueOut) {
		return true
	}

	mu := c.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if !c.inner.Find(key, valueOut) {
		return false
	}
	c.lru.Put(key, valueOut)
	return true
}

func (c *Cached) Insert(key, value []byte) bool {
	mu := c.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if !c.inner.Insert(key, value) {
		return false
	}
	c.lru.Put(key, value)
	return true
}

func (c *Cached) Update(key, value []byte) bool {
	mu := c.lock(key)
	mu.Lock()
	defer mu.Unlock()

	if !c.inner.Update(key, value) {
		c.lru.Delete(key)
		return false
	}
	c.lru.Put(key, value)
	return true
}

func (c *Cached) Remove(key []byte) bool {
	mu := c.lock(key)
	mu.Lock()
	defer mu.Unlock()

	c.lru.Delete(key)
	return c.inner.Remove(key)
}

// Scan goes straight to the wrapped index.
func (c *Cached) Scan(key []byte, count int, valuesOut []byte) int {
	return c.inner.Scan(key, count, valuesOut)
}

// BulkLoad forwards to the wrapped index and leaves the cache cold.
func (c *Cached) BulkLoad(data []byte, count int) error {
	loader, ok := c.inner.(index.BulkLoader)
	if !ok {
		return index.ErrBulkLoad
	}
	return loader.BulkLoad(data, count)
}

// Stats reports cache effectiveness.
func (c *Cached) Stats() cache.Stats {
	return c.lru.Stats()
}

func (c *Cached) Close() error {
	c.lru.Clear()
	return c.inner.Close()
}
