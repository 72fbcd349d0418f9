// Package bench drives an index through the load, verify and run phases of
// a benchmark and collects per-worker statistics.
package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"kvbench/internal/affinity"
	"kvbench/internal/generator"
	"kvbench/internal/index"
	"kvbench/internal/logging"
	"kvbench/internal/workload"
)

var (
	ErrVerificationFailed = errors.New("verification failed")
	ErrLoadIncomplete     = errors.New("load incomplete")
	ErrOperationMismatch  = errors.New("total operations specified and performed do not match")
)

// VerificationError reports the first loaded identifier the index could not
// find.
type VerificationError struct {
	ID  uint64
	Key []byte
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%v: key %x (id %d) not found", ErrVerificationFailed, e.Key, e.ID)
}

func (e *VerificationError) Unwrap() error { return ErrVerificationFailed }

// Sample is one observation of the monitor.
type Sample struct {
	Seq        int
	Operations uint64
	Elapsed    time.Duration
}

// SampleObserver is notified from the monitor goroutine after every sample.
// Implementations must not block.
type SampleObserver interface {
	ObserveSample(s Sample)
}

// PhaseObserver is optionally implemented by a SampleObserver that also
// tracks phases the benchmark enters on its own, such as the verification
// that follows a load.
type PhaseObserver interface {
	SetPhase(phase string)
	PhaseDone(phase string, d time.Duration)
}

// loadCheckEvery and verifyCheckEvery are how many index calls a worker makes
// between checks for cancellation or a failure in another worker.
const (
	loadCheckEvery   = 4096
	verifyCheckEvery = 4096
)

// Benchmark owns the options and the index under test. Load must be called
// before Run; Run may be called more than once.
type Benchmark struct {
	idx      index.Index
	opts     workload.Options
	logger   *logging.Logger
	table    *generator.OperationTable
	dist     generator.Distribution // shared by every worker's key generator
	topology *affinity.Topology
	observer SampleObserver

	// nextID is the first identifier not used by a previous phase.
	nextID uint64
}

// New validates opts and prepares a benchmark against idx.
func New(idx index.Index, opts workload.Options, logger *logging.Logger) (*Benchmark, error) {
	if idx == nil {
		return nil, errors.New("index cannot be nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	dist, err := generator.NewDistribution(opts.Distribution, opts.Keyspace(), opts.Skew)
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	b := &Benchmark{
		idx:    idx,
		opts:   opts,
		logger: logger.WithField("component", "bench"),
		table:  opts.OperationTable(),
		dist:   dist,
		nextID: opts.Records,
	}
	if opts.PinThreads {
		b.topology = affinity.Detect()
		b.logger.Info("Pinning workers", "cpus", b.topology.String(), "physical_cores", b.topology.Physical)
	}
	return b, nil
}

// SetObserver registers o to receive monitor samples. It must be called
// before Run.
func (b *Benchmark) SetObserver(o SampleObserver) {
	b.observer = o
}

func (b *Benchmark) Options() workload.Options { return b.opts }

// newKeyGenerator builds a worker-owned key generator seeded for tid.
func (b *Benchmark) newKeyGenerator(tid int) *generator.KeyGenerator {
	keys := generator.NewKeyGenerator(b.opts.Keyspace(), b.opts.KeySize, b.opts.ApplyHash, []byte(b.opts.KeyPrefix), b.dist)
	keys.SetSeed(b.workerSeed(tid))
	return keys
}

func (b *Benchmark) workerSeed(tid int) uint64 {
	return b.opts.Seed * uint64(tid+1)
}

// pin binds the calling goroutine to the CPU assigned to tid. Failures are
// logged and the worker continues unpinned.
func (b *Benchmark) pin(tid int) {
	if b.topology == nil {
		return
	}
	cpu := b.topology.CPU(tid)
	if err := affinity.Pin(cpu); err != nil {
		b.logger.Warn("Failed to pin worker", "worker", tid, "cpu", cpu, "error", err)
	}
}

// Load populates the index with identifiers [0, Records) and verifies them
// unless verification is disabled.
func (b *Benchmark) Load(ctx context.Context) error {
	logger := b.logger.WithContext(logging.WithPhase(ctx, "load"))
	b.nextID = b.opts.Records

	if b.opts.SkipLoad {
		logger.Info("Load skipped")
		return nil
	}

	logger.Info("Loading started", "records", b.opts.Records, "threads", b.opts.Threads, "bulk", b.opts.BulkLoad)
	start := time.Now()

	var err error
	if bl, ok := b.idx.(index.BulkLoader); ok && b.opts.BulkLoad {
		err = b.bulkLoad(bl)
		if errors.Is(err, index.ErrBulkLoad) {
			logger.Warn("Index rejected bulk load, inserting in parallel", "error", err)
			err = b.parallelLoad(ctx)
		}
	} else {
		if b.opts.BulkLoad {
			logger.Warn("Index does not support bulk load, inserting in parallel")
		}
		err = b.parallelLoad(ctx)
	}
	b.logger.PhaseEnd(ctx, "load", time.Since(start), err, "records", b.opts.Records)
	if err != nil {
		return err
	}

	if b.opts.SkipVerify {
		logger.Info("Verification skipped")
		return nil
	}
	return b.Verify(ctx)
}

// bulkLoad hands every record to the index as one contiguous buffer.
func (b *Benchmark) bulkLoad(bl index.BulkLoader) error {
	keys := b.newKeyGenerator(0)
	values := generator.NewValueGenerator(b.opts.ValueSize)
	values.SetSeed(b.workerSeed(0))

	keySize := keys.Size()
	recordSize := keySize + b.opts.ValueSize
	data := make([]byte, int(b.opts.Records)*recordSize)
	for id := uint64(0); id < b.opts.Records; id++ {
		off := int(id) * recordSize
		copy(data[off:], keys.HashID(id))
		copy(data[off+keySize:], values.Next())
	}

	if err := bl.BulkLoad(data, int(b.opts.Records)); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadIncomplete, err)
	}
	return nil
}

// parallelLoad inserts each worker's partition of the identifier space.
func (b *Benchmark) parallelLoad(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for tid, part := range Partition(b.opts.Records, b.opts.Threads) {
		g.Go(func() error {
			b.pin(tid)

			keys := b.newKeyGenerator(tid)
			values := generator.NewValueGenerator(b.opts.ValueSize)
			values.SetSeed(b.workerSeed(tid))

			keys.SetCurrentID(part.Start)
			var rejected uint64
			for i := part.Start; i < part.End; i++ {
				if (i-part.Start)%loadCheckEvery == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				if !b.idx.Insert(keys.Next(true), values.Next()) {
					rejected++
				}
			}
			if rejected > 0 {
				return fmt.Errorf("%w: worker %d: %d of %d inserts rejected", ErrLoadIncomplete, tid, rejected, part.Len())
			}
			return nil
		})
	}
	return g.Wait()
}

// Verify looks up every loaded identifier and fails on the first one the
// index cannot find.
func (b *Benchmark) Verify(ctx context.Context) error {
	po, _ := b.observer.(PhaseObserver)
	if po != nil {
		po.SetPhase("verify")
	}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for tid, part := range Partition(b.opts.Records, b.opts.Threads) {
		g.Go(func() error {
			keys := b.newKeyGenerator(tid)
			out := make([]byte, b.opts.ValueSize)
			for id := part.Start; id < part.End; id++ {
				if (id-part.Start)%verifyCheckEvery == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				key := keys.HashID(id)
				if !b.idx.Find(key, out) {
					return &VerificationError{ID: id, Key: append([]byte(nil), key...)}
				}
			}
			return nil
		})
	}

	err := g.Wait()
	elapsed := time.Since(start)
	if po != nil {
		po.PhaseDone("verify", elapsed)
	}
	b.logger.PhaseEnd(ctx, "verify", elapsed, err, "records", b.opts.Records)
	return err
}
