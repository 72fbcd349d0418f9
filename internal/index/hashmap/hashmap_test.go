package hashmap

import (
	"testing"

	"kvbench/internal/index"
	"kvbench/internal/index/indextest"
)

func TestConformance(t *testing.T) {
	indextest.Run(t, func(t *testing.T) index.Index {
		return New(indextest.Config())
	}, indextest.Options{OrderedScan: false})
}

func TestNew_ShardCount(t *testing.T) {
	tests := []struct {
		name    string
		cfg     index.Config
		want    int
	}{
		{"default from threads", index.Config{Threads: 3}, 16},
		{"explicit power of two", index.Config{Options: map[string]string{"shards": "8"}}, 8},
		{"rounded up", index.Config{Options: map[string]string{"shards": "5"}}, 8},
		{"invalid falls back", index.Config{Threads: 1, Options: map[string]string{"shards": "x"}}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.cfg)
			if len(m.shards) != tt.want {
				t.Errorf("shards = %d, want %d", len(m.shards), tt.want)
			}
		})
	}
}

func TestMap_Len(t *testing.T) {
	m := New(indextest.Config())
	for id := uint64(0); id < 50; id++ {
		m.Insert(indextest.Key(id), indextest.Value(id, 'v'))
	}
	m.Remove(indextest.Key(0))
	if m.Len() != 49 {
		t.Errorf("Len() = %d, want 49", m.Len())
	}
}
