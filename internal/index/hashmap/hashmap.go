// Package hashmap is an unordered in-memory index split into shards, each a
// Go map behind its own lock. Shards are picked with murmur3.
package hashmap

import (
	"strconv"
	"sync"

	"github.com/spaolacci/murmur3"

	"kvbench/internal/index"
)

const Name = "hashmap"

func init() {
	index.Register(Name, func(cfg index.Config) (index.Index, error) {
		return New(cfg), nil
	})
}

type shard struct {
	mu sync.RWMutex
	m  map[string][]byte
	_  [32]byte // pad to a cache line
}

// Map implements index.Index. Scan is unsupported and always returns 0.
type Map struct {
	shards []shard
	mask   uint64
	cfg    index.Config
}

var (
	_ index.Index      = (*Map)(nil)
	_ index.BulkLoader = (*Map)(nil)
)

// New creates a map with the "shards" option rounded up to a power of two.
// The default is four shards per configured thread.
func New(cfg index.Config) *Map {
	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}
	n, err := strconv.Atoi(cfg.Option("shards", strconv.Itoa(threads*4)))
	if err != nil || n < 1 {
		n = threads * 4
	}
	size := 1
	for size < n {
		size <<= 1
	}

	m := &Map{shards: make([]shard, size), mask: uint64(size - 1), cfg: cfg}
	for i := range m.shards {
		m.shards[i].m = make(map[string][]byte)
	}
	return m
}

func (m *Map) shardFor(key []byte) *shard {
	return &m.shards[murmur3.Sum64(key)&m.mask]
}

func (m *Map) Find(key []byte, valueOut []byte) bool {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.m[string(key)]
	if ok {
		copy(valueOut, v)
	}
	s.mu.RUnlock()
	return ok
}

func (m *Map) Insert(key, value []byte) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[string(key)]; ok {
		return false
	}
	s.m[string(key)] = append([]byte(nil), value...)
	return true
}

func (m *Map) Update(key, value []byte) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.m[string(key)]
	if !ok {
		return false
	}
	if len(v) == len(value) {
		copy(v, value)
	} else {
		s.m[string(key)] = append([]byte(nil), value...)
	}
	return true
}

func (m *Map) Remove(key []byte) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[string(key)]; !ok {
		return false
	}
	delete(s.m, string(key))
	return true
}

// Scan is not supported by a hash index.
func (m *Map) Scan(key []byte, count int, valuesOut []byte) int {
	return 0
}

func (m *Map) BulkLoad(data []byte, count int) error {
	return index.SplitRecords(data, count, m.cfg, func(key, value []byte) error {
		s := m.shardFor(key)
		s.mu.Lock()
		s.m[string(key)] = append([]byte(nil), value...)
		s.mu.Unlock()
		return nil
	})
}

// Len returns the number of stored keys.
func (m *Map) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

func (m *Map) Close() error {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		s.m = make(map[string][]byte)
		s.mu.Unlock()
	}
	return nil
}
