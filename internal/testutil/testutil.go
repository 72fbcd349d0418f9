package testutil

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kvbench/internal/config"
	"kvbench/internal/generator"
	"kvbench/internal/index"
	"kvbench/internal/index/btreemap"
	"kvbench/internal/logging"
	"kvbench/internal/workload"
)

// TestIndex creates an in-memory ordered index sized for opts.
func TestIndex(t *testing.T, opts workload.Options) *btreemap.Map {
	t.Helper()

	idx := btreemap.New(index.Config{
		KeySize:   opts.KeyLength(),
		ValueSize: opts.ValueSize,
		Threads:   opts.Threads,
		InMemory:  true,
	})

	t.Cleanup(func() {
		idx.Close()
	})

	return idx
}

// TestConfig creates a test configuration
func TestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Benchmark = TestOptions()
	cfg.Logging = logging.TestLoggingConfig()
	cfg.Metrics.Address = "127.0.0.1:0" // Let the OS choose a free port for testing
	return cfg
}

// TestOptions returns a small workload that completes in milliseconds.
func TestOptions() workload.Options {
	opts := workload.DefaultOptions()
	opts.Records = 2000
	opts.Operations = 4000
	opts.Threads = 2
	opts.Duration = 200 * time.Millisecond
	opts.SamplingInterval = 50 * time.Millisecond
	return opts
}

// TestLogger creates a test logger with minimal configuration
func TestLogger() *logging.Logger {
	testLogConfig := logging.TestLoggingConfig()
	return logging.NewLogger(&testLogConfig)
}

// KeyGenerator builds a key generator matching opts without a distribution.
func KeyGenerator(opts workload.Options) *generator.KeyGenerator {
	return generator.NewKeyGenerator(opts.Keyspace(), opts.KeySize, opts.ApplyHash, []byte(opts.KeyPrefix), nil)
}

// PopulateIndex inserts identifiers [0, count) the way the load phase does
// and returns the generator used, so callers can derive the same keys.
func PopulateIndex(t *testing.T, idx index.Index, opts workload.Options, count uint64) *generator.KeyGenerator {
	t.Helper()

	keys := KeyGenerator(opts)
	values := generator.NewValueGenerator(opts.ValueSize)
	for id := uint64(0); id < count; id++ {
		if !idx.Insert(keys.HashID(id), values.ForID(id)) {
			t.Fatalf("Failed to insert identifier %d", id)
		}
	}
	return keys
}

// AssertFound fails the test unless every identifier in [from, to) is present.
func AssertFound(t *testing.T, idx index.Index, keys *generator.KeyGenerator, from, to uint64, valueSize int) {
	t.Helper()

	out := make([]byte, valueSize)
	for id := from; id < to; id++ {
		if !idx.Find(keys.HashID(id), out) {
			t.Fatalf("Expected identifier %d to be present", id)
		}
	}
}

// WithTimeout runs a function with a timeout
func WithTimeout(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()

	select {
	case <-done:
		// Function completed successfully
	case <-time.After(timeout):
		t.Fatalf("Function did not complete within %v", timeout)
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, checkInterval time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(checkInterval)
	}

	t.Fatalf("Condition was not met within %v", timeout)
}

// ConcurrentTest runs a test function concurrently
func ConcurrentTest(t *testing.T, concurrency int, testFunc func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			testFunc(workerID)
		}(i)
	}

	wg.Wait()
}

// CountingIndex wraps an index and counts the calls each operation receives.
type CountingIndex struct {
	index.Index
	Finds   atomic.Uint64
	Inserts atomic.Uint64
	Updates atomic.Uint64
	Removes atomic.Uint64
	Scans   atomic.Uint64
}

func NewCountingIndex(inner index.Index) *CountingIndex {
	return &CountingIndex{Index: inner}
}

func (c *CountingIndex) Find(key, valueOut []byte) bool {
	c.Finds.Add(1)
	return c.Index.Find(key, valueOut)
}

func (c *CountingIndex) Insert(key, value []byte) bool {
	c.Inserts.Add(1)
	return c.Index.Insert(key, value)
}

func (c *CountingIndex) Update(key, value []byte) bool {
	c.Updates.Add(1)
	return c.Index.Update(key, value)
}

func (c *CountingIndex) Remove(key []byte) bool {
	c.Removes.Add(1)
	return c.Index.Remove(key)
}

func (c *CountingIndex) Scan(key []byte, count int, valuesOut []byte) int {
	c.Scans.Add(1)
	return c.Index.Scan(key, count, valuesOut)
}

// Total is the number of calls across all operations.
func (c *CountingIndex) Total() uint64 {
	return c.Finds.Load() + c.Inserts.Load() + c.Updates.Load() + c.Removes.Load() + c.Scans.Load()
}
