// Package bloomfront puts a bloom filter in front of another index so that
// point lookups of absent keys never reach it.
package bloomfront

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"

	"kvbench/internal/index"
)

const Name = "bloom"

func init() {
	index.Register(Name, func(cfg index.Config) (index.Index, error) {
		innerName := cfg.Option("inner", "btreemap")
		if innerName == Name {
			return nil, fmt.Errorf("bloom index cannot wrap itself")
		}
		inner, err := index.Open(innerName, cfg)
		if err != nil {
			return nil, err
		}
		expected, err := strconv.ParseUint(cfg.Option("expected", "1000000"), 10, 64)
		if err != nil {
			inner.Close()
			return nil, fmt.Errorf("invalid bloom expected option: %w", err)
		}
		fp, err := strconv.ParseFloat(cfg.Option("fp_rate", "0.01"), 64)
		if err != nil || fp <= 0 || fp >= 1 {
			inner.Close()
			return nil, fmt.Errorf("invalid bloom fp_rate option: %q", cfg.Option("fp_rate", ""))
		}
		return New(inner, uint(expected), fp, cfg), nil
	})
}

// Filtered wraps an index. Removed keys stay in the filter, so removals
// only cost extra lookups, never wrong answers.
type Filtered struct {
	inner  index.Index
	cfg    index.Config
	mu     sync.RWMutex
	filter *bloom.BloomFilter

	skipped atomic.Uint64
}

var (
	_ index.Index      = (*Filtered)(nil)
	_ index.BulkLoader = (*Filtered)(nil)
)

func New(inner index.Index, expected uint, fpRate float64, cfg index.Config) *Filtered {
	return &Filtered{
		inner:  inner,
		cfg:    cfg,
		filter: bloom.NewWithEstimates(expected, fpRate),
	}
}

func (f *Filtered) mayContain(key []byte) bool {
	f.mu.RLock()
	ok := f.filter.Test(key)
	f.mu.RUnlock()
	if !ok {
		f.skipped.Add(1)
	}
	return ok
}

func (f *Filtered) add(key []byte) {
	f.mu.Lock()
	f.filter.Add(key)
	f.mu.Unlock()
}

func (f *Filtered) Find(key []byte, valueOut []byte) bool {
	if !f.mayContain(key) {
		return false
	}
	return f.inner.Find(key, valueOut)
}

func (f *Filtered) Insert(key, value []byte) bool {
	if !f.inner.Insert(key, value) {
		return false
	}
	f.add(key)
	return true
}

func (f *Filtered) Update(key, value []byte) bool {
	if !f.mayContain(key) {
		return false
	}
	return f.inner.Update(key, value)
}

func (f *Filtered) Remove(key []byte) bool {
	if !f.mayContain(key) {
		return false
	}
	return f.inner.Remove(key)
}

// Scan goes straight to the wrapped index.
func (f *Filtered) Scan(key []byte, count int, valuesOut []byte) int {
	return f.inner.Scan(key, count, valuesOut)
}

func (f *Filtered) BulkLoad(data []byte, count int) error {
	loader, ok := f.inner.(index.BulkLoader)
	if !ok {
		return index.ErrBulkLoad
	}
	if err := loader.BulkLoad(data, count); err != nil {
		return err
	}
	return index.SplitRecords(data, count, f.cfg, func(key, _ []byte) error {
		f.add(key)
		return nil
	})
}

// Skipped is the number of operations answered by the filter alone.
func (f *Filtered) Skipped() uint64 {
	return f.skipped.Load()
}

func (f *Filtered) Close() error {
	return f.inner.Close()
}
