package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"kvbench/internal/bench"
	"kvbench/internal/workload"
)

// BenchmarkHarness_Run measures whole operation-mode runs against btreemap.
func BenchmarkHarness_Run(b *testing.B) {
	for _, threads := range []int{1, 4} {
		b.Run(fmt.Sprintf("threads=%d", threads), func(b *testing.B) {
			opts := workload.DefaultOptions()
			opts.Records = preload
			opts.Operations = 200_000
			opts.Threads = threads
			opts.ReadRatio = 0.8
			opts.InsertRatio = 0.1
			opts.UpdateRatio = 0.1

			idx := openIndex(b, "btreemap", opts.ValueSize)
			bm, err := bench.New(idx, opts, nil)
			if err != nil {
				b.Fatal(err)
			}
			if err := bm.Load(context.Background()); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := bm.Run(context.Background())
				if err != nil {
					b.Fatal(err)
				}
				b.ReportMetric(float64(result.Operations())/result.Elapsed.Seconds(), "ops/s")
			}
		})
	}
}
