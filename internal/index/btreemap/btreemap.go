// Package btreemap is an ordered in-memory index: a B-tree guarded by a
// single reader/writer lock.
package btreemap

import (
	"bytes"
	"strconv"
	"sync"

	"github.com/google/btree"

	"kvbench/internal/index"
)

const Name = "btreemap"

func init() {
	index.Register(Name, func(cfg index.Config) (index.Index, error) {
		return New(cfg), nil
	})
}

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

// Map implements index.Index and index.BulkLoader.
type Map struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[item]
	cfg  index.Config
}

var (
	_ index.Index      = (*Map)(nil)
	_ index.BulkLoader = (*Map)(nil)
)

// New creates an empty map. The "degree" option sets the B-tree degree.
func New(cfg index.Config) *Map {
	degree, err := strconv.Atoi(cfg.Option("degree", "32"))
	if err != nil || degree < 2 {
		degree = 32
	}
	return &Map{tree: btree.NewG[item](degree, less), cfg: cfg}
}

func (m *Map) Find(key []byte, valueOut []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.tree.Get(item{key: key})
	if ok {
		copy(valueOut, it.value)
	}
	return ok
}

func (m *Map) Insert(key, value []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tree.Has(item{key: key}) {
		return false
	}
	m.tree.ReplaceOrInsert(item{key: clone(key), value: clone(value)})
	return true
}

func (m *Map) Update(key, value []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.tree.Get(item{key: key})
	if !ok {
		return false
	}
	it.value = clone(value)
	m.tree.ReplaceOrInsert(it)
	return true
}

func (m *Map) Remove(key []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.tree.Delete(item{key: key})
	return ok
}

func (m *Map) Scan(key []byte, count int, valuesOut []byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	vs := m.cfg.ValueSize
	m.tree.AscendGreaterOrEqual(item{key: key}, func(it item) bool {
		if n >= count {
			return false
		}
		if vs > 0 {
			copy(valuesOut[n*vs:(n+1)*vs], it.value)
		}
		n++
		return true
	})
	return n
}

// BulkLoad inserts count records. Existing keys are overwritten.
func (m *Map) BulkLoad(data []byte, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return index.SplitRecords(data, count, m.cfg, func(key, value []byte) error {
		m.tree.ReplaceOrInsert(item{key: clone(key), value: clone(value)})
		return nil
	})
}

// Len returns the number of stored keys.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Ascend visits every key/value pair in key order until fn returns false.
func (m *Map) Ascend(fn func(key, value []byte) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.tree.Ascend(func(it item) bool { return fn(it.key, it.value) })
}

func (m *Map) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Clear(false)
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
