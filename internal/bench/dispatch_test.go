package bench

import (
	"testing"

	"kvbench/internal/generator"
	"kvbench/internal/testutil"
)

func newTestWorker(t *testing.T) (*worker, *testutil.CountingIndex) {
	t.Helper()
	opts := testutil.TestOptions()
	idx := testutil.NewCountingIndex(testutil.TestIndex(t, opts))
	return &worker{
		idx:       idx,
		values:    generator.NewValueGenerator(opts.ValueSize),
		stats:     newStats(0),
		scanSize:  4,
		valueOut:  make([]byte, opts.ValueSize),
		valuesOut: make([]byte, 4*opts.ValueSize),
	}, idx
}

func TestRunOp(t *testing.T) {
	w, idx := newTestWorker(t)
	key := []byte("key00001")

	steps := []struct {
		op   generator.Operation
		want bool
	}{
		{generator.Read, false},
		{generator.Insert, true},
		{generator.Insert, false},
		{generator.Read, true},
		{generator.Update, true},
		{generator.Scan, true},
		{generator.Remove, true},
		{generator.Remove, false},
		{generator.Update, false},
	}

	for i, s := range steps {
		if got := w.runOp(s.op, key); got != s.want {
			t.Errorf("Step %d: %v returned %v, want %v", i, s.op, got, s.want)
		}
	}

	if w.stats.Operations() != uint64(len(steps)) {
		t.Errorf("Expected %d operations, got %d", len(steps), w.stats.Operations())
	}
	if idx.Total() != uint64(len(steps)) {
		t.Errorf("Expected %d index calls, got %d", len(steps), idx.Total())
	}

	wantCompleted := [generator.NumOperations]uint64{2, 2, 2, 2, 1}
	wantSucceeded := [generator.NumOperations]uint64{1, 1, 1, 1, 1}
	if w.stats.Completed != wantCompleted {
		t.Errorf("Completed = %v, want %v", w.stats.Completed, wantCompleted)
	}
	if w.stats.Succeeded != wantSucceeded {
		t.Errorf("Succeeded = %v, want %v", w.stats.Succeeded, wantSucceeded)
	}
}

func TestRunOp_UnknownOperationPanics(t *testing.T) {
	w, _ := newTestWorker(t)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for unknown operation")
		}
	}()
	w.runOp(generator.Operation(generator.NumOperations), []byte("key00001"))
}

func TestStats_Latencies(t *testing.T) {
	s := newStats(2)
	s.Times = append(s.Times, 10, 15, 20, 40)

	got := s.Latencies()
	if len(got) != 2 || got[0] != 5 || got[1] != 20 {
		t.Errorf("Latencies() = %v, want [5 20]", got)
	}
}

func TestResult_SampleDeltas(t *testing.T) {
	r := &Result{Samples: []uint64{100, 250, 250, 400}}
	want := []uint64{100, 150, 0, 150}

	got := r.SampleDeltas()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Delta %d = %d, want %d", i, got[i], want[i])
		}
	}
}
