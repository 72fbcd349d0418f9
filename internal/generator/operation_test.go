package generator

import (
	"math"
	"testing"
)

func TestOperationTable_Counts(t *testing.T) {
	tests := []struct {
		name   string
		ratios [NumOperations]float64
		want   map[Operation]int
	}{
		{"read only", [NumOperations]float64{1, 0, 0, 0, 0}, map[Operation]int{Read: 256}},
		{"half and half", [NumOperations]float64{0.5, 0.5, 0, 0, 0}, map[Operation]int{Read: 128, Insert: 128}},
		{"scan only", [NumOperations]float64{0, 0, 0, 0, 1}, map[Operation]int{Scan: 256}},
		{"quarters", [NumOperations]float64{0.25, 0.25, 0.25, 0.25, 0}, map[Operation]int{Read: 64, Insert: 64, Update: 64, Remove: 64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.ratios
			table := NewOperationTable(r[0], r[1], r[2], r[3], r[4])
			for _, op := range Operations {
				if got := table.Count(op); got != tt.want[op] {
					t.Errorf("Count(%v) = %d, want %d", op, got, tt.want[op])
				}
			}
		})
	}
}

func TestOperationTable_Reproducible(t *testing.T) {
	a := NewOperationTable(0.6, 0.1, 0.1, 0.1, 0.1)
	b := NewOperationTable(0.6, 0.1, 0.1, 0.1, 0.1)
	for i := 0; i < 256; i++ {
		if a.Entry(uint8(i)) != b.Entry(uint8(i)) {
			t.Fatalf("tables differ at slot %d", i)
		}
	}
	if a.Ratio(Read) != 0.6 {
		t.Errorf("Ratio(Read) = %v, want 0.6", a.Ratio(Read))
	}
}

func TestOperationGenerator_Converges(t *testing.T) {
	const draws = 100000
	table := NewOperationTable(0.5, 0.5, 0, 0, 0)
	g := NewOperationGenerator(table, 1729)

	var counts [NumOperations]int
	for i := 0; i < draws; i++ {
		counts[g.Next()]++
	}
	for _, op := range []Operation{Read, Insert} {
		frac := float64(counts[op]) / draws
		if math.Abs(frac-0.5) > 0.02 {
			t.Errorf("%v fraction = %.4f, want 0.5 +- 0.02", op, frac)
		}
	}
	if counts[Update]+counts[Remove]+counts[Scan] != 0 {
		t.Errorf("zero-ratio kinds were drawn: %v", counts)
	}
}

func TestOperationGenerator_SingleKind(t *testing.T) {
	g := NewOperationGenerator(NewOperationTable(0, 0, 1, 0, 0), 3)
	for i := 0; i < 1000; i++ {
		if op := g.Next(); op != Update {
			t.Fatalf("Next() = %v, want update", op)
		}
	}
}

func TestOperationGenerator_SeedDeterminism(t *testing.T) {
	table := NewOperationTable(0.2, 0.2, 0.2, 0.2, 0.2)
	a := NewOperationGenerator(table, 99)
	b := NewOperationGenerator(table, 99)
	for i := 0; i < 1000; i++ {
		if a.Next() != b.Next() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}
}

func TestOperation_String(t *testing.T) {
	want := []string{"read", "insert", "update", "remove", "scan"}
	for i, op := range Operations {
		if op.String() != want[i] {
			t.Errorf("Operations[%d].String() = %q, want %q", i, op.String(), want[i])
		}
	}
	if Operation(9).String() != "operation(9)" {
		t.Errorf("unknown operation string = %q", Operation(9).String())
	}
}
