package bench

import (
	"fmt"

	"kvbench/internal/generator"
)

// runOp issues op against the index and records its outcome. An operation
// the index rejects is a measured result, not an error. An unknown kind
// means the operation table is corrupt and is fatal.
func (w *worker) runOp(op generator.Operation, key []byte) bool {
	var ok bool
	switch op {
	case generator.Read:
		ok = w.idx.Find(key, w.valueOut)
	case generator.Insert:
		ok = w.idx.Insert(key, w.values.Next())
	case generator.Update:
		ok = w.idx.Update(key, w.values.Next())
	case generator.Remove:
		ok = w.idx.Remove(key)
	case generator.Scan:
		ok = w.idx.Scan(key, w.scanSize, w.valuesOut) > 0
	default:
		panic(fmt.Sprintf("bench: unknown operation %v", op))
	}
	w.stats.record(op, ok)
	return ok
}
