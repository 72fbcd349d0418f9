package generator

import (
	"fmt"
	"math/rand/v2"
)

// Operation is the kind of a single index access.
type Operation uint8

const (
	Read Operation = iota
	Insert
	Update
	Remove
	Scan
)

// NumOperations is the number of operation kinds.
const NumOperations = 5

// Operations lists every kind in report order.
var Operations = [NumOperations]Operation{Read, Insert, Update, Remove, Scan}

func (o Operation) String() string {
	switch o {
	case Read:
		return "read"
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Remove:
		return "remove"
	case Scan:
		return "scan"
	default:
		return fmt.Sprintf("operation(%d)", uint8(o))
	}
}

const (
	tableSize = 256
	// tableSeed fixes the table layout for a given set of ratios.
	tableSeed = 0x5eed
)

// OperationTable is the immutable 256-entry lookup table that operation
// generators index with one random byte. Entry counts are proportional to
// the ratios within 1/256.
type OperationTable struct {
	entries [tableSize]Operation
	ratios  [NumOperations]float64
}

// NewOperationTable samples the discrete distribution given by the ratios at
// 256 evenly spaced points of its inverse CDF and shuffles the result with a
// fixed seed. Ratios are expected to be non-negative with a positive sum.
func NewOperationTable(read, insert, update, remove, scan float64) *OperationTable {
	t := &OperationTable{ratios: [NumOperations]float64{read, insert, update, remove, scan}}

	var total float64
	for _, r := range t.ratios {
		total += r
	}

	for i := range t.entries {
		target := (float64(i) + 0.5) / tableSize * total
		op := lastNonZero(t.ratios)
		var cumulative float64
		for k, r := range t.ratios {
			cumulative += r
			if r > 0 && target < cumulative {
				op = Operation(k)
				break
			}
		}
		t.entries[i] = op
	}

	rng := rand.New(rand.NewPCG(tableSeed, tableSeed))
	rng.Shuffle(tableSize, func(i, j int) {
		t.entries[i], t.entries[j] = t.entries[j], t.entries[i]
	})
	return t
}

func lastNonZero(ratios [NumOperations]float64) Operation {
	for k := NumOperations - 1; k >= 0; k-- {
		if ratios[k] > 0 {
			return Operation(k)
		}
	}
	return Read
}

// Entry returns the operation at table slot i.
func (t *OperationTable) Entry(i uint8) Operation { return t.entries[i] }

// Count reports how many table slots hold op.
func (t *OperationTable) Count(op Operation) int {
	n := 0
	for _, e := range t.entries {
		if e == op {
			n++
		}
	}
	return n
}

// Ratio returns the configured weight of op.
func (t *OperationTable) Ratio(op Operation) float64 { return t.ratios[op] }

// OperationGenerator draws operations from a shared table using its own
// random engine. One per worker.
type OperationGenerator struct {
	table *OperationTable
	rng   *rand.Rand
	word  uint64
	left  int
}

func NewOperationGenerator(table *OperationTable, seed uint64) *OperationGenerator {
	return &OperationGenerator{
		table: table,
		rng:   rand.New(rand.NewPCG(seed, seed+tableSeed)),
	}
}

// Next returns table[b] for a uniformly random byte b. Random words are
// consumed a byte at a time.
func (g *OperationGenerator) Next() Operation {
	if g.left == 0 {
		g.word = g.rng.Uint64()
		g.left = 8
	}
	b := uint8(g.word)
	g.word >>= 8
	g.left--
	return g.table.entries[b]
}
