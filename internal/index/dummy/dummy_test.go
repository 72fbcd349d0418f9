package dummy

import (
	"testing"

	"kvbench/internal/index"
)

func TestDummy(t *testing.T) {
	idx, err := index.Open(Name, index.Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if idx.Find([]byte("k"), nil) {
		t.Error("Find() = true")
	}
	if !idx.Insert([]byte("k"), nil) || !idx.Update([]byte("k"), nil) || !idx.Remove([]byte("k")) {
		t.Error("writes should always succeed")
	}
	if n := idx.Scan([]byte("k"), 10, nil); n != 0 {
		t.Errorf("Scan() = %d", n)
	}
	if _, ok := idx.(index.BulkLoader); ok {
		t.Error("dummy should not support bulk load")
	}
}
