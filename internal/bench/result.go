package bench

import (
	"time"

	"kvbench/internal/generator"
	"kvbench/internal/workload"
)

// Result is what a run leaves behind for reporting.
type Result struct {
	Mode    workload.Mode
	Elapsed time.Duration
	Workers []*Stats
	// Samples holds the cumulative operation count observed by the monitor
	// at the end of each sampling window.
	Samples []uint64
}

// Operations is the total number of operations issued by all workers.
func (r *Result) Operations() uint64 {
	var n uint64
	for _, s := range r.Workers {
		n += s.Operations()
	}
	return n
}

func (r *Result) Succeeded() uint64 {
	var n uint64
	for _, s := range r.Workers {
		n += s.TotalSucceeded()
	}
	return n
}

// Completed is the number of operations of kind op across workers.
func (r *Result) Completed(op generator.Operation) uint64 {
	var n uint64
	for _, s := range r.Workers {
		n += s.Completed[op]
	}
	return n
}

func (r *Result) SucceededOf(op generator.Operation) uint64 {
	var n uint64
	for _, s := range r.Workers {
		n += s.Succeeded[op]
	}
	return n
}

// Latencies gathers the sampled durations of every worker, unsorted.
func (r *Result) Latencies() []time.Duration {
	var out []time.Duration
	for _, s := range r.Workers {
		out = append(out, s.Latencies()...)
	}
	return out
}

// SampleDeltas turns the cumulative series into per-window counts.
func (r *Result) SampleDeltas() []uint64 {
	deltas := make([]uint64, len(r.Samples))
	var prev uint64
	for i, s := range r.Samples {
		deltas[i] = s - prev
		prev = s
	}
	return deltas
}
