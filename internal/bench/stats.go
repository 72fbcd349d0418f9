package bench

import (
	"sync/atomic"
	"time"

	"kvbench/internal/generator"
)

// Stats is the record a single worker fills during a run. Only the owning
// worker writes it; the monitor reads the operation counter while the run
// is in progress and everything else is read after the workers are joined.
type Stats struct {
	operations atomic.Uint64

	Completed [generator.NumOperations]uint64
	Succeeded [generator.NumOperations]uint64

	// Times holds (start, end) pairs of sampled operations as offsets from
	// the run epoch.
	Times []time.Duration

	_ [64]byte // keep neighbouring records off this cache line
}

func newStats(latencyPairs int) *Stats {
	return &Stats{Times: make([]time.Duration, 0, 2*latencyPairs)}
}

func (s *Stats) record(op generator.Operation, ok bool) {
	s.Completed[op]++
	if ok {
		s.Succeeded[op]++
	}
	s.operations.Add(1)
}

// Operations is the number of operations the worker has issued so far.
func (s *Stats) Operations() uint64 {
	return s.operations.Load()
}

func (s *Stats) TotalSucceeded() uint64 {
	var n uint64
	for _, c := range s.Succeeded {
		n += c
	}
	return n
}

// Latencies reduces the recorded pairs to durations.
func (s *Stats) Latencies() []time.Duration {
	out := make([]time.Duration, 0, len(s.Times)/2)
	for i := 0; i+1 < len(s.Times); i += 2 {
		out = append(out, s.Times[i+1]-s.Times[i])
	}
	return out
}

// latencyPairs estimates how many sampled operations a worker will record so
// the slice does not grow inside the timed region.
func latencyPairs(ops uint64, ratio float64) int {
	switch {
	case ratio <= 0:
		return 0
	case ratio >= 1:
		return int(ops)
	}
	expected := float64(ops) * ratio
	return int(expected*1.1) + 64
}
