package report

import (
	"fmt"
	"io"

	"kvbench/internal/generator"
	"kvbench/internal/workload"
)

// WriteOptions prints the benchmark options block that precedes a run.
func WriteOptions(w io.Writer, target string, o workload.Options) error {
	ew := &errWriter{w: w}

	ew.printf("Benchmark Options:\n")
	ew.printf("\tTarget: %s\n", target)
	ew.printf("\t# Records: %d\n", o.Records)
	ew.printf("\t# Threads: %d\n", o.Threads)
	if o.Mode == workload.OperationMode {
		ew.printf("\t# Operations: %d\n", o.Operations)
	} else {
		ew.printf("\tDuration (s): %g\n", o.Duration.Seconds())
	}
	ew.printf("\tSampling: %d ms\n", o.SamplingInterval.Milliseconds())
	ew.printf("\tLatency: %g\n", o.LatencySampling)
	ew.printf("\tKey prefix: %s\n", o.KeyPrefix)
	ew.printf("\tKey size: %d\n", o.KeySize)
	ew.printf("\tValue size: %d\n", o.ValueSize)
	ew.printf("\tRandom seed: %d\n", o.Seed)
	ew.printf("\tPinned threads: %t\n", o.PinThreads)

	dist := o.Distribution.String()
	if o.Distribution == generator.SelfSimilar || o.Distribution == generator.Zipfian {
		dist = fmt.Sprintf("%s(%f)", dist, o.Skew)
	}
	ew.printf("\tKey distribution: %s\n", dist)
	ew.printf("\tScan size: %d\n", o.ScanSize)
	ew.printf("\tOperations ratio:\n")
	ew.printf("\t\tRead: %g\n", o.ReadRatio)
	ew.printf("\t\tInsert: %g\n", o.InsertRatio)
	ew.printf("\t\tUpdate: %g\n", o.UpdateRatio)
	ew.printf("\t\tDelete: %g\n", o.RemoveRatio)
	ew.printf("\t\tScan: %g\n", o.ScanRatio)
	return ew.err
}
