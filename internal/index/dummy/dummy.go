// Package dummy is an index that stores nothing. Running against it
// measures the cost of the harness itself.
package dummy

import "kvbench/internal/index"

const Name = "dummy"

func init() {
	index.Register(Name, func(cfg index.Config) (index.Index, error) {
		return New(), nil
	})
}

// Index accepts every write and finds nothing.
type Index struct{}

var _ index.Index = Index{}

func New() Index { return Index{} }

func (Index) Find(key []byte, valueOut []byte) bool { return false }
func (Index) Insert(key, value []byte) bool { return true }
func (Index) Update(key, value []byte) bool { return true }
func (Index) Remove(key []byte) bool { return true }
func (Index) Scan(key []byte, count int, valuesOut []byte) int { return 0 }
func (Index) Close() error { return nil }
