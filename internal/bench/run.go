package bench

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"kvbench/internal/generator"
	"kvbench/internal/index"
	"kvbench/internal/logging"
	"kvbench/internal/workload"
)

// timeModeLatencyPairs is the number of operations whose latency capacity is
// reserved per worker when the operation count is not known upfront.
const timeModeLatencyPairs = 1_000_000

// runState is shared by the workers and the monitor of one run.
type runState struct {
	ready     sync.WaitGroup // startup barrier
	startOnce sync.Once
	started   chan struct{}
	epoch     time.Time

	finished  atomic.Bool
	remaining atomic.Int64
	done      chan struct{}
	elapsed   time.Duration
}

func newRunState(workers int) *runState {
	rs := &runState{
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	rs.ready.Add(workers)
	rs.remaining.Store(int64(workers))
	return rs
}

// arrive blocks until every worker has initialized, then starts the clock
// exactly once.
func (rs *runState) arrive() {
	rs.ready.Done()
	rs.ready.Wait()
	rs.startOnce.Do(func() {
		rs.epoch = time.Now()
		close(rs.started)
	})
}

// leave records the elapsed time when the last worker finishes and releases
// the monitor.
func (rs *runState) leave() {
	if rs.remaining.Add(-1) == 0 {
		rs.elapsed = time.Since(rs.epoch)
		rs.finished.Store(true)
		close(rs.done)
	}
}

// Run executes the timed workload and returns the collected statistics. In
// operation mode a result whose total differs from the configured number of
// operations is returned together with ErrOperationMismatch.
func (b *Benchmark) Run(ctx context.Context) (*Result, error) {
	opts := b.opts
	ctx = logging.WithPhase(ctx, "run")
	b.logger.PhaseStart(ctx, "run", "mode", opts.Mode.String(), "threads", opts.Threads)

	workers := b.newWorkers()

	rs := newRunState(len(workers))
	result := &Result{Mode: opts.Mode, Workers: make([]*Stats, len(workers))}
	for i, w := range workers {
		result.Workers[i] = w.stats
	}

	var monitorDone sync.WaitGroup
	monitorDone.Add(1)
	go func() {
		defer monitorDone.Done()
		result.Samples = b.monitor(rs, result.Workers)
	}()

	var wg sync.WaitGroup
	wg.Add(len(workers))
	for _, w := range workers {
		go func() {
			defer wg.Done()
			b.pin(w.tid)
			w.run(ctx, rs)
		}()
	}
	wg.Wait()
	monitorDone.Wait()

	result.Elapsed = rs.elapsed
	b.advance(workers)

	total := result.Operations()
	b.logger.PhaseEnd(ctx, "run", result.Elapsed, nil, "operations", total, "samples", len(result.Samples))

	return result, b.checkTotal(result)
}

func (b *Benchmark) checkTotal(r *Result) error {
	if r.Mode != workload.OperationMode {
		return nil
	}
	if total := r.Operations(); total != b.opts.Operations {
		return fmt.Errorf("%w: specified %d, performed %d", ErrOperationMismatch, b.opts.Operations, total)
	}
	return nil
}

// newWorkers seeds every worker's generators and assigns its insert
// identifiers before the clock starts.
func (b *Benchmark) newWorkers() []*worker {
	opts := b.opts
	threads := opts.Threads
	loads := SplitOperations(opts.Operations, threads)

	var limit rate.Limit
	if opts.MaxRate > 0 {
		limit = rate.Limit(opts.MaxRate / float64(threads))
	}

	// In operation mode a worker cannot insert more often than its budget, so
	// consecutive budget-sized blocks keep insert identifiers disjoint.
	block := b.nextID
	workers := make([]*worker, threads)
	for tid := range workers {
		keys := b.newKeyGenerator(tid)
		seed := b.workerSeed(tid)
		values := generator.NewValueGenerator(opts.ValueSize)
		values.SetSeed(seed)

		w := &worker{
			tid:       tid,
			idx:       b.idx,
			mode:      opts.Mode,
			keys:      keys,
			values:    values,
			ops:       generator.NewOperationGenerator(b.table, seed),
			coin:      generator.NewBernoulli(opts.LatencySampling, seed),
			scanSize:  opts.ScanSize,
			valueOut:  make([]byte, opts.ValueSize),
			valuesOut: make([]byte, opts.ScanSize*opts.ValueSize),
			records:   opts.Records,
			base:      b.nextID,
			stride:    uint64(threads),
		}
		if limit > 0 {
			w.limiter = rate.NewLimiter(limit, 1)
		}

		switch opts.Mode {
		case workload.OperationMode:
			w.budget = loads[tid]
			w.stats = newStats(latencyPairs(w.budget, opts.LatencySampling))
			keys.SetCurrentID(block)
			block += loads[tid]
		default:
			w.stats = newStats(latencyPairs(timeModeLatencyPairs, opts.LatencySampling))
		}
		workers[tid] = w
	}
	return workers
}

// advance moves the insert base past every identifier this run could have
// used so a following run does not collide with it.
func (b *Benchmark) advance(workers []*worker) {
	threads := uint64(len(workers))
	if b.opts.Mode == workload.OperationMode {
		b.nextID += b.opts.Operations
		return
	}
	var most uint64
	for _, w := range workers {
		most = max(most, w.inserted)
	}
	b.nextID += most * threads
}

// monitor samples the aggregate operation count every sampling interval.
// In operation mode it stops once the workers are done, taking a final
// sample; in time mode it stops after the configured number of samples and
// tells the workers to finish.
func (b *Benchmark) monitor(rs *runState, stats []*Stats) []uint64 {
	opts := b.opts
	var samples []uint64
	if opts.Mode == workload.TimeMode {
		samples = make([]uint64, 0, opts.Samples())
	}

	<-rs.started
	ticker := time.NewTicker(opts.SamplingInterval)
	defer ticker.Stop()

	take := func() {
		var total uint64
		for _, s := range stats {
			total += s.Operations()
		}
		samples = append(samples, total)
		if b.observer != nil {
			b.observer.ObserveSample(Sample{
				Seq:        len(samples) - 1,
				Operations: total,
				Elapsed:    time.Since(rs.epoch),
			})
		}
	}

	if opts.Mode == workload.OperationMode {
		for {
			select {
			case <-rs.done:
				take()
				return samples
			case <-ticker.C:
				take()
			}
		}
	}

	for n := opts.Samples(); len(samples) < n; {
		<-ticker.C
		take()
	}
	rs.finished.Store(true)
	return samples
}

// worker is the state a single goroutine owns during a run.
type worker struct {
	tid     int
	idx     index.Index
	mode    workload.Mode
	keys    *generator.KeyGenerator
	values  *generator.ValueGenerator
	ops     *generator.OperationGenerator
	coin    *generator.Bernoulli
	limiter *rate.Limiter
	stats   *Stats

	scanSize  int
	valueOut  []byte
	valuesOut []byte

	budget uint64 // operations to issue in operation mode

	// Identifier layout: [0, records) is loaded; run inserts of this worker
	// use base+tid, base+tid+stride, ... in time mode.
	records  uint64
	base     uint64
	stride   uint64
	inserted uint64 // successful time-mode inserts
}

func (w *worker) run(ctx context.Context, rs *runState) {
	rs.arrive()
	defer rs.leave()

	if w.mode == workload.OperationMode {
		for i := uint64(0); i < w.budget; i++ {
			w.step(ctx, rs.epoch)
		}
		return
	}
	for !rs.finished.Load() {
		w.step(ctx, rs.epoch)
	}
}

// step draws one operation and key, issues it and records the outcome.
func (w *worker) step(ctx context.Context, epoch time.Time) {
	op, key := w.next()

	if w.limiter != nil {
		// A cancelled context only lifts the throttle.
		_ = w.limiter.Wait(ctx)
	}

	var ok bool
	if w.coin.Sample() {
		start := time.Since(epoch)
		ok = w.runOp(op, key)
		end := time.Since(epoch)
		w.stats.Times = append(w.stats.Times, start, end)
	} else {
		ok = w.runOp(op, key)
	}

	if ok && op == generator.Insert && w.mode == workload.TimeMode {
		w.inserted++
	}
}

// next picks the operation and its key. Run inserts take fresh
// identifiers; other operations draw from the keyspace. In time mode the
// draw is folded onto identifiers this worker knows to be inserted, and an
// operation with nothing to reference becomes an insert.
func (w *worker) next() (generator.Operation, []byte) {
	op := w.ops.Next()

	if w.mode == workload.OperationMode {
		if op == generator.Insert {
			return op, w.keys.Next(true)
		}
		return op, w.keys.HashID(w.keys.NextID())
	}

	known := w.records + w.inserted
	if op == generator.Insert || known == 0 {
		return generator.Insert, w.keys.HashID(w.insertID(w.inserted))
	}
	id := w.keys.NextID() % known
	if id >= w.records {
		id = w.insertID(id - w.records)
	}
	return op, w.keys.HashID(id)
}

// insertID is the identifier of this worker's k-th time-mode insert.
func (w *worker) insertID(k uint64) uint64 {
	return w.base + uint64(w.tid) + k*w.stride
}
