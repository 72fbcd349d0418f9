package btreemap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kvbench/internal/index"
	"kvbench/internal/index/indextest"
)

func TestConformance(t *testing.T) {
	indextest.Run(t, func(t *testing.T) index.Index {
		return New(indextest.Config())
	}, indextest.Options{OrderedScan: true})
}

func TestMap_AscendAndLen(t *testing.T) {
	m := New(indextest.Config())
	for _, id := range []uint64{3, 1, 2} {
		m.Insert(indextest.Key(id), indextest.Value(id, 'v'))
	}
	assert.Equal(t, 3, m.Len())

	var order []uint64
	m.Ascend(func(key, value []byte) bool {
		order = append(order, uint64(key[7]))
		return true
	})
	assert.Equal(t, []uint64{1, 2, 3}, order)
}

func TestMap_KeysAreCopied(t *testing.T) {
	m := New(indextest.Config())
	key := indextest.Key(1)
	m.Insert(key, indextest.Value(1, 'v'))
	key[7] = 9

	assert.True(t, m.Find(indextest.Key(1), make([]byte, indextest.ValueSize)))
	assert.False(t, m.Find(indextest.Key(9), make([]byte, indextest.ValueSize)))
}

func TestRegistered(t *testing.T) {
	idx, err := index.Open(Name, indextest.Config())
	assert.NoError(t, err)
	assert.NoError(t, idx.Close())
}
