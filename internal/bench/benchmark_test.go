package bench

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"kvbench/internal/generator"
	"kvbench/internal/index"
	"kvbench/internal/index/bloomfront"
	"kvbench/internal/index/dummy"
	"kvbench/internal/testutil"
	"kvbench/internal/workload"
)

func newBenchmark(t *testing.T, idx index.Index, opts workload.Options) *Benchmark {
	t.Helper()
	b, err := New(idx, opts, testutil.TestLogger())
	if err != nil {
		t.Fatalf("Failed to create benchmark: %v", err)
	}
	return b
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := testutil.TestOptions()
	opts.ReadRatio = 0.5

	if _, err := New(dummy.New(), opts, nil); err == nil {
		t.Error("Expected error for ratios not summing to one")
	}
	if _, err := New(nil, testutil.TestOptions(), nil); err == nil {
		t.Error("Expected error for nil index")
	}
}

func TestBenchmark_EndToEnd(t *testing.T) {
	records := uint64(1000000)
	if testing.Short() {
		records = 100000
	}

	opts := testutil.TestOptions()
	opts.Threads = 4
	opts.Records = records
	opts.Operations = records
	opts.ReadRatio, opts.InsertRatio = 0.9, 0.1

	idx := testutil.TestIndex(t, opts)
	b := newBenchmark(t, idx, opts)
	ctx := context.Background()

	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := uint64(idx.Len()); got != records {
		t.Fatalf("Expected %d unique keys after load, got %d", records, got)
	}

	result, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := result.Operations(); got != opts.Operations {
		t.Errorf("Expected %d operations, got %d", opts.Operations, got)
	}
	if len(result.Workers) != 4 {
		t.Errorf("Expected 4 worker records, got %d", len(result.Workers))
	}

	readFraction := float64(result.Completed(generator.Read)) / float64(result.Operations())
	if math.Abs(readFraction-0.9) > 0.02 {
		t.Errorf("Expected read fraction near 0.9, got %v", readFraction)
	}
	for _, op := range []generator.Operation{generator.Update, generator.Remove, generator.Scan} {
		if result.Completed(op) != 0 {
			t.Errorf("Expected no %v operations, got %d", op, result.Completed(op))
		}
	}

	if got, want := uint64(idx.Len()), records+result.SucceededOf(generator.Insert); got != want {
		t.Errorf("Expected %d keys after run, got %d", want, got)
	}
	if reads := result.Completed(generator.Read); result.SucceededOf(generator.Read) < reads*85/100 {
		t.Errorf("Expected most reads to hit, got %d of %d", result.SucceededOf(generator.Read), reads)
	}

	if len(result.Samples) == 0 {
		t.Fatal("Expected at least one sample")
	}
	if last := result.Samples[len(result.Samples)-1]; last != opts.Operations {
		t.Errorf("Expected final sample %d, got %d", opts.Operations, last)
	}
	if result.Elapsed <= 0 {
		t.Errorf("Expected positive elapsed time, got %v", result.Elapsed)
	}
}

func TestLoad_Bulk(t *testing.T) {
	opts := testutil.TestOptions()
	opts.BulkLoad = true

	idx := testutil.TestIndex(t, opts)
	b := newBenchmark(t, idx, opts)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if uint64(idx.Len()) != opts.Records {
		t.Errorf("Expected %d records, got %d", opts.Records, idx.Len())
	}

	keys := testutil.KeyGenerator(opts)
	testutil.AssertFound(t, idx, keys, 0, opts.Records, opts.ValueSize)
}

func TestLoad_BulkFallback(t *testing.T) {
	opts := testutil.TestOptions()
	opts.BulkLoad = true
	opts.SkipVerify = true

	idx := testutil.NewCountingIndex(dummy.New())
	b := newBenchmark(t, idx, opts)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if idx.Inserts.Load() != opts.Records {
		t.Errorf("Expected %d inserts, got %d", opts.Records, idx.Inserts.Load())
	}
}

func TestLoad_BulkRejected(t *testing.T) {
	opts := testutil.TestOptions()
	opts.BulkLoad = true
	opts.SkipVerify = true

	// the wrapper is a BulkLoader but its inner index is not
	inner := testutil.NewCountingIndex(dummy.New())
	idx := bloomfront.New(inner, uint(opts.Records), 0.01, index.Config{KeySize: opts.KeyLength(), ValueSize: opts.ValueSize})
	b := newBenchmark(t, idx, opts)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if inner.Inserts.Load() != opts.Records {
		t.Errorf("Expected %d inserts, got %d", opts.Records, inner.Inserts.Load())
	}
}

func TestLoad_Skip(t *testing.T) {
	opts := testutil.TestOptions()
	opts.SkipLoad = true

	idx := testutil.NewCountingIndex(dummy.New())
	b := newBenchmark(t, idx, opts)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if idx.Total() != 0 {
		t.Errorf("Expected no index calls, got %d", idx.Total())
	}
}

func TestLoad_Cancelled(t *testing.T) {
	opts := testutil.TestOptions()
	idx := testutil.NewCountingIndex(dummy.New())
	b := newBenchmark(t, idx, opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if idx.Inserts.Load() != 0 {
		t.Errorf("Expected no inserts after cancellation, got %d", idx.Inserts.Load())
	}
}

type rejectingIndex struct {
	dummy.Index
}

func (rejectingIndex) Insert(key, value []byte) bool { return false }

func TestLoad_Rejected(t *testing.T) {
	b := newBenchmark(t, rejectingIndex{}, testutil.TestOptions())

	err := b.Load(context.Background())
	if !errors.Is(err, ErrLoadIncomplete) {
		t.Errorf("Expected ErrLoadIncomplete, got %v", err)
	}
}

func TestVerify_MissingKey(t *testing.T) {
	opts := testutil.TestOptions()
	opts.SkipVerify = true

	idx := testutil.TestIndex(t, opts)
	b := newBenchmark(t, idx, opts)
	ctx := context.Background()

	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := b.Verify(ctx); err != nil {
		t.Fatalf("Verify failed on a complete load: %v", err)
	}

	keys := testutil.KeyGenerator(opts)
	if !idx.Remove(keys.HashID(42)) {
		t.Fatal("Failed to remove key 42")
	}

	err := b.Verify(ctx)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("Expected ErrVerificationFailed, got %v", err)
	}
	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *VerificationError, got %T", err)
	}
	if verr.ID != 42 {
		t.Errorf("Expected missing id 42, got %d", verr.ID)
	}
}

func TestRun_LatencySampling(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
	}{
		{"every operation", 1.0},
		{"no operation", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testutil.TestOptions()
			opts.LatencySampling = tt.ratio
			opts.ReadRatio, opts.UpdateRatio, opts.ScanRatio = 0.6, 0.3, 0.1

			idx := testutil.TestIndex(t, opts)
			b := newBenchmark(t, idx, opts)
			if err := b.Load(context.Background()); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			result, err := b.Run(context.Background())
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			var pairs uint64
			for _, s := range result.Workers {
				if len(s.Times)%2 != 0 {
					t.Fatalf("Expected timestamp pairs, got %d timestamps", len(s.Times))
				}
				pairs += uint64(len(s.Times) / 2)
			}

			want := uint64(0)
			if tt.ratio == 1.0 {
				want = result.Operations()
			}
			if pairs != want {
				t.Errorf("Expected %d latency pairs, got %d", want, pairs)
			}
			for _, l := range result.Latencies() {
				if l < 0 {
					t.Fatalf("Negative latency %v", l)
				}
			}
		})
	}
}

func TestNewWorkers_TimeModeReservesLatencyCapacity(t *testing.T) {
	opts := testutil.TestOptions()
	opts.Mode = workload.TimeMode
	opts.LatencySampling = 0.01

	b := newBenchmark(t, dummy.New(), opts)
	for _, w := range b.newWorkers() {
		if got, want := cap(w.stats.Times), 2*10000; got < want {
			t.Errorf("Worker %d reserved %d latency slots, want at least %d", w.tid, got, want)
		}
	}
}

func TestRun_TimeMode(t *testing.T) {
	opts := testutil.TestOptions()
	opts.Mode = workload.TimeMode
	opts.Records = 500
	opts.Threads = 3
	opts.Duration = 200 * time.Millisecond
	opts.SamplingInterval = 50 * time.Millisecond
	opts.ReadRatio, opts.InsertRatio, opts.UpdateRatio, opts.ScanRatio = 0.4, 0.3, 0.2, 0.1

	idx := testutil.TestIndex(t, opts)
	b := newBenchmark(t, idx, opts)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	result, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Samples) != opts.Samples() {
		t.Errorf("Expected %d samples, got %d", opts.Samples(), len(result.Samples))
	}
	for i := 1; i < len(result.Samples); i++ {
		if result.Samples[i] < result.Samples[i-1] {
			t.Errorf("Samples must not decrease: %v", result.Samples)
		}
	}
	if result.Operations() == 0 {
		t.Fatal("Expected operations in time mode")
	}
	if result.Elapsed < opts.Duration {
		t.Errorf("Expected elapsed >= %v, got %v", opts.Duration, result.Elapsed)
	}

	// Without removes, every referenced identifier must exist.
	for _, op := range []generator.Operation{generator.Read, generator.Insert, generator.Update} {
		if result.SucceededOf(op) != result.Completed(op) {
			t.Errorf("Expected every %v to succeed, got %d of %d", op, result.SucceededOf(op), result.Completed(op))
		}
	}
	if got, want := uint64(idx.Len()), opts.Records+result.SucceededOf(generator.Insert); got != want {
		t.Errorf("Expected %d keys after run, got %d", want, got)
	}
}

func TestRun_TimeModeEmptyIndex(t *testing.T) {
	opts := testutil.TestOptions()
	opts.Mode = workload.TimeMode
	opts.Records = 0
	opts.SkipLoad = true
	opts.Duration = 100 * time.Millisecond
	opts.SamplingInterval = 50 * time.Millisecond
	opts.ReadRatio = 1.0

	idx := testutil.TestIndex(t, opts)
	b := newBenchmark(t, idx, opts)

	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// With nothing loaded the first operation of each worker becomes an
	// insert and later reads only reference it.
	if result.Completed(generator.Insert) != uint64(opts.Threads) {
		t.Errorf("Expected one insert per worker, got %d", result.Completed(generator.Insert))
	}
	if result.SucceededOf(generator.Read) != result.Completed(generator.Read) {
		t.Errorf("Expected every read to hit, got %d of %d", result.SucceededOf(generator.Read), result.Completed(generator.Read))
	}
}

func TestRun_MixedInsertsUseDisjointIdentifiers(t *testing.T) {
	for _, seed := range []uint64{1729, 2} {
		opts := testutil.TestOptions()
		opts.Threads = 4
		opts.Records = 1000
		opts.Operations = 100000
		opts.ReadRatio, opts.InsertRatio = 0.5, 0.5
		opts.Seed = seed

		idx := testutil.TestIndex(t, opts)
		b := newBenchmark(t, idx, opts)
		ctx := context.Background()
		if err := b.Load(ctx); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		for run := 0; run < 2; run++ {
			result, err := b.Run(ctx)
			if err != nil {
				t.Fatalf("Seed %d run %d failed: %v", seed, run, err)
			}
			completed, succeeded := result.Completed(generator.Insert), result.SucceededOf(generator.Insert)
			if completed == 0 || succeeded != completed {
				t.Errorf("Seed %d run %d: %d of %d inserts succeeded", seed, run, succeeded, completed)
			}
		}
	}
}

func TestNew_SharedDistribution(t *testing.T) {
	opts := testutil.TestOptions()
	opts.Distribution = generator.Zipfian
	opts.Skew = 0.99

	b := newBenchmark(t, dummy.New(), opts)
	if b.dist == nil || b.dist.Name() != "zipfian" {
		t.Fatalf("Expected a zipfian distribution, got %v", b.dist)
	}

	opts.Skew = 1.5
	if _, err := New(dummy.New(), opts, nil); err == nil {
		t.Error("Expected error for zipfian skew outside [0, 1)")
	}
}

func TestRun_Repeatable(t *testing.T) {
	opts := testutil.TestOptions()
	opts.ReadRatio, opts.InsertRatio = 0, 1.0

	idx := testutil.TestIndex(t, opts)
	b := newBenchmark(t, idx, opts)
	ctx := context.Background()
	if err := b.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for run := 0; run < 2; run++ {
		result, err := b.Run(ctx)
		if err != nil {
			t.Fatalf("Run %d failed: %v", run, err)
		}
		if result.SucceededOf(generator.Insert) != opts.Operations {
			t.Errorf("Run %d: expected %d successful inserts, got %d", run, opts.Operations, result.SucceededOf(generator.Insert))
		}
	}
	if got, want := uint64(idx.Len()), opts.Records+2*opts.Operations; got != want {
		t.Errorf("Expected %d keys, got %d", want, got)
	}
}

func TestRun_Deterministic(t *testing.T) {
	opts := testutil.TestOptions()
	opts.Threads = 1
	opts.LatencySampling = 0.5
	opts.ReadRatio, opts.InsertRatio, opts.UpdateRatio, opts.RemoveRatio, opts.ScanRatio = 0.3, 0.2, 0.2, 0.2, 0.1

	run := func() *Result {
		idx := testutil.TestIndex(t, opts)
		b := newBenchmark(t, idx, opts)
		if err := b.Load(context.Background()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		result, err := b.Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return result
	}

	a, b := run(), run()
	for _, op := range generator.Operations {
		if a.Completed(op) != b.Completed(op) || a.SucceededOf(op) != b.SucceededOf(op) {
			t.Errorf("%v differs between runs: %d/%d vs %d/%d",
				op, a.SucceededOf(op), a.Completed(op), b.SucceededOf(op), b.Completed(op))
		}
	}
	if len(a.Workers[0].Times) != len(b.Workers[0].Times) {
		t.Errorf("Latency samples differ: %d vs %d", len(a.Workers[0].Times), len(b.Workers[0].Times))
	}
}

func TestRun_MaxRate(t *testing.T) {
	opts := testutil.TestOptions()
	opts.Operations = 200
	opts.MaxRate = 2000

	b := newBenchmark(t, dummy.New(), opts)
	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Elapsed < 80*time.Millisecond {
		t.Errorf("Expected throttled run to take at least 80ms, took %v", result.Elapsed)
	}
}

type sampleRecorder struct {
	mu      sync.Mutex
	samples []Sample
}

func (r *sampleRecorder) ObserveSample(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func TestRun_Observer(t *testing.T) {
	opts := testutil.TestOptions()
	opts.Mode = workload.TimeMode

	rec := &sampleRecorder{}
	b := newBenchmark(t, dummy.New(), opts)
	b.SetObserver(rec)

	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.samples) != len(result.Samples) {
		t.Fatalf("Expected %d observed samples, got %d", len(result.Samples), len(rec.samples))
	}
	for i, s := range rec.samples {
		if s.Seq != i || s.Operations != result.Samples[i] {
			t.Errorf("Sample %d mismatch: %+v vs %d", i, s, result.Samples[i])
		}
	}
}

type phaseRecorder struct {
	sampleRecorder
	phases []string
	done   []string
}

func (r *phaseRecorder) SetPhase(phase string) { r.phases = append(r.phases, phase) }

func (r *phaseRecorder) PhaseDone(phase string, _ time.Duration) { r.done = append(r.done, phase) }

func TestLoad_ReportsVerifyPhase(t *testing.T) {
	opts := testutil.TestOptions()
	rec := &phaseRecorder{}
	b := newBenchmark(t, testutil.TestIndex(t, opts), opts)
	b.SetObserver(rec)

	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(rec.phases) != 1 || rec.phases[0] != "verify" {
		t.Errorf("Expected the verify phase to be reported, got %v", rec.phases)
	}
	if len(rec.done) != 1 || rec.done[0] != "verify" {
		t.Errorf("Expected the verify phase to complete, got %v", rec.done)
	}

	opts.SkipVerify = true
	rec = &phaseRecorder{}
	b = newBenchmark(t, testutil.TestIndex(t, opts), opts)
	b.SetObserver(rec)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(rec.phases) != 0 {
		t.Errorf("Expected no phases with verification skipped, got %v", rec.phases)
	}
}

func TestCheckTotal(t *testing.T) {
	opts := testutil.TestOptions()
	b := newBenchmark(t, dummy.New(), opts)

	short := &Result{Mode: workload.OperationMode, Workers: []*Stats{newStats(0)}}
	short.Workers[0].record(generator.Read, true)
	if err := b.checkTotal(short); !errors.Is(err, ErrOperationMismatch) {
		t.Errorf("Expected ErrOperationMismatch, got %v", err)
	}

	short.Mode = workload.TimeMode
	if err := b.checkTotal(short); err != nil {
		t.Errorf("Expected no check in time mode, got %v", err)
	}
}
