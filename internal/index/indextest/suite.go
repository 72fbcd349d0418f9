// Package indextest holds a conformance suite that every index backend runs
// from its own tests.
package indextest

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvbench/internal/index"
)

const (
	KeySize   = 8
	ValueSize = 16
)

// Options tunes the suite to what a backend supports.
type Options struct {
	// OrderedScan is false for backends whose Scan always returns 0.
	OrderedScan bool
	// Concurrency is the number of goroutines in the concurrent test.
	Concurrency int
}

// Opener returns a fresh, empty index configured with KeySize and
// ValueSize. The suite closes it.
type Opener func(t *testing.T) index.Index

// Config is the configuration the suite expects backends to honour.
func Config() index.Config {
	return index.Config{KeySize: KeySize, ValueSize: ValueSize, Threads: 4, InMemory: true}
}

// Key builds the big-endian key for id.
func Key(id uint64) []byte {
	k := make([]byte, KeySize)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// Value builds a recognizable value for id.
func Value(id uint64, version byte) []byte {
	v := bytes.Repeat([]byte{version}, ValueSize)
	binary.BigEndian.PutUint64(v, id)
	return v
}

// Run executes the conformance suite.
func Run(t *testing.T, open Opener, opts Options) {
	if opts.Concurrency == 0 {
		opts.Concurrency = 8
	}

	t.Run("InsertFind", func(t *testing.T) {
		idx := open(t)
		defer idx.Close()

		out := make([]byte, ValueSize)
		assert.False(t, idx.Find(Key(1), out), "find on empty index")
		require.True(t, idx.Insert(Key(1), Value(1, 'a')))
		assert.False(t, idx.Insert(Key(1), Value(1, 'b')), "duplicate insert must fail")

		require.True(t, idx.Find(Key(1), out))
		assert.Equal(t, Value(1, 'a'), out)
		assert.False(t, idx.Find(Key(2), out))
	})

	t.Run("Update", func(t *testing.T) {
		idx := open(t)
		defer idx.Close()

		out := make([]byte, ValueSize)
		assert.False(t, idx.Update(Key(5), Value(5, 'x')), "update of absent key")
		assert.False(t, idx.Find(Key(5), out), "update must not insert")

		require.True(t, idx.Insert(Key(5), Value(5, 'a')))
		require.True(t, idx.Update(Key(5), Value(5, 'b')))
		require.True(t, idx.Find(Key(5), out))
		assert.Equal(t, Value(5, 'b'), out)
	})

	t.Run("Remove", func(t *testing.T) {
		idx := open(t)
		defer idx.Close()

		assert.False(t, idx.Remove(Key(9)))
		require.True(t, idx.Insert(Key(9), Value(9, 'a')))
		assert.True(t, idx.Remove(Key(9)))
		assert.False(t, idx.Remove(Key(9)), "second remove")
		assert.False(t, idx.Find(Key(9), make([]byte, ValueSize)))
		assert.True(t, idx.Insert(Key(9), Value(9, 'c')), "reinsert after remove")
	})

	t.Run("Scan", func(t *testing.T) {
		idx := open(t)
		defer idx.Close()

		for id := uint64(0); id < 100; id++ {
			require.True(t, idx.Insert(Key(id), Value(id, 's')))
		}

		out := make([]byte, 10*ValueSize)
		n := idx.Scan(Key(10), 5, out)
		if !opts.OrderedScan {
			assert.Equal(t, 0, n)
			return
		}
		require.Equal(t, 5, n)
		for i := 0; i < n; i++ {
			assert.Equal(t, Value(uint64(10+i), 's'), out[i*ValueSize:(i+1)*ValueSize], "scan slot %d", i)
		}

		assert.Equal(t, 3, idx.Scan(Key(97), 10, out), "scan past the end")
		assert.Equal(t, 0, idx.Scan(Key(1000), 10, out), "scan beyond the last key")
	})

	t.Run("BulkLoad", func(t *testing.T) {
		idx := open(t)
		defer idx.Close()

		loader, ok := idx.(index.BulkLoader)
		if !ok {
			t.Skip("backend does not support bulk load")
		}

		const count = 500
		data := make([]byte, 0, count*(KeySize+ValueSize))
		for id := uint64(0); id < count; id++ {
			data = append(data, Key(id)...)
			data = append(data, Value(id, 'l')...)
		}
		require.NoError(t, loader.BulkLoad(data, count))

		out := make([]byte, ValueSize)
		for id := uint64(0); id < count; id++ {
			require.True(t, idx.Find(Key(id), out), "id %d after bulk load", id)
			assert.Equal(t, Value(id, 'l'), out)
		}
		assert.Error(t, loader.BulkLoad(data[:len(data)-1], count), "short data")
	})

	t.Run("ConcurrentInsert", func(t *testing.T) {
		idx := open(t)
		defer idx.Close()

		const perWorker = 200
		var wg sync.WaitGroup
		failures := make([]int, opts.Concurrency)
		for w := 0; w < opts.Concurrency; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					id := uint64(w*perWorker + i)
					if !idx.Insert(Key(id), Value(id, 'c')) {
						failures[w]++
					}
				}
			}(w)
		}
		wg.Wait()

		for w, f := range failures {
			assert.Zero(t, f, "worker %d failed inserts", w)
		}
		out := make([]byte, ValueSize)
		for id := uint64(0); id < uint64(opts.Concurrency*perWorker); id++ {
			if !idx.Find(Key(id), out) {
				t.Fatalf("id %d missing after concurrent insert", id)
			}
		}
	})
}
