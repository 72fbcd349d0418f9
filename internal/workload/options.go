// Package workload describes a benchmark run: the immutable options every
// phase reads, their defaults and their validation.
package workload

import (
	"fmt"
	"math"
	"strings"
	"time"

	"kvbench/internal/generator"
)

// MaxScan bounds the number of records a single scan may request.
const MaxScan = 1000

// Mode selects how a run terminates.
type Mode int

const (
	// OperationMode executes a fixed number of operations.
	OperationMode Mode = iota
	// TimeMode runs until a fixed number of sampling windows has elapsed.
	TimeMode
)

func (m Mode) String() string {
	switch m {
	case OperationMode:
		return "operation"
	case TimeMode:
		return "time"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "operation", "operations", "ops", "":
		return OperationMode, nil
	case "time", "timed", "duration":
		return TimeMode, nil
	default:
		return OperationMode, fmt.Errorf("unknown run mode: %s", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Options is the snapshot of settings a benchmark is built from. It is
// read-only once a benchmark starts.
type Options struct {
	Records    uint64        `yaml:"records" json:"records"`
	Operations uint64        `yaml:"operations" json:"operations"`
	Duration   time.Duration `yaml:"duration" json:"duration"`
	Threads    int           `yaml:"threads" json:"threads"`
	Mode       Mode          `yaml:"mode" json:"mode"`

	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
	KeySize   int    `yaml:"key_size" json:"key_size"`
	ValueSize int    `yaml:"value_size" json:"value_size"`
	ApplyHash bool   `yaml:"apply_hash" json:"apply_hash"`

	ReadRatio   float64 `yaml:"read_ratio" json:"read_ratio"`
	InsertRatio float64 `yaml:"insert_ratio" json:"insert_ratio"`
	UpdateRatio float64 `yaml:"update_ratio" json:"update_ratio"`
	RemoveRatio float64 `yaml:"remove_ratio" json:"remove_ratio"`
	ScanRatio   float64 `yaml:"scan_ratio" json:"scan_ratio"`
	ScanSize    int     `yaml:"scan_size" json:"scan_size"`

	Distribution generator.DistributionKind `yaml:"distribution" json:"distribution"`
	Skew         float64                    `yaml:"skew" json:"skew"`
	Seed         uint64                     `yaml:"seed" json:"seed"`

	SamplingInterval time.Duration `yaml:"sampling_interval" json:"sampling_interval"`
	LatencySampling  float64       `yaml:"latency_sampling" json:"latency_sampling"`

	BulkLoad   bool    `yaml:"bulk_load" json:"bulk_load"`
	SkipLoad   bool    `yaml:"skip_load" json:"skip_load"`
	SkipVerify bool    `yaml:"skip_verify" json:"skip_verify"`
	PinThreads bool    `yaml:"pin_threads" json:"pin_threads"`
	MaxRate    float64 `yaml:"max_rate" json:"max_rate"` // operations per second, 0 = unlimited
}

// DefaultOptions mirrors the classic PiBench defaults: one million records
// and operations, read-only, uniform keys.
func DefaultOptions() Options {
	return Options{
		Records:          1000000,
		Operations:       1000000,
		Duration:         20 * time.Second,
		Threads:          1,
		Mode:             OperationMode,
		KeySize:          8,
		ValueSize:        8,
		ApplyHash:        true,
		ReadRatio:        1.0,
		ScanSize:         100,
		Distribution:     generator.Uniform,
		Skew:             0.2,
		Seed:             1729,
		SamplingInterval: time.Second,
	}
}

// ratioTolerance absorbs rounding in ratios given as decimal fractions.
const ratioTolerance = 1e-6

// Validate checks every precondition the benchmark relies on.
func (o *Options) Validate() error {
	if o.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", o.Threads)
	}
	if o.KeySize < 1 {
		return fmt.Errorf("key size must be positive, got %d", o.KeySize)
	}
	if total := len(o.KeyPrefix) + o.KeySize; total > generator.MaxKeySize {
		return fmt.Errorf("total key size cannot be greater than %d, but is %d", generator.MaxKeySize, total)
	}
	if o.ValueSize < 1 || o.ValueSize > generator.MaxValueSize {
		return fmt.Errorf("value size must be in [1, %d], got %d", generator.MaxValueSize, o.ValueSize)
	}

	ratios := o.Ratios()
	for i, r := range ratios {
		if r < 0 || math.IsNaN(r) {
			return fmt.Errorf("%s ratio cannot be negative: %v", generator.Operation(i), r)
		}
	}
	if sum := o.RatioSum(); math.Abs(sum-1.0) > ratioTolerance {
		return fmt.Errorf("sum of ratios should be 1.0 but is %v", sum)
	}
	if o.ScanSize < 1 || o.ScanSize > MaxScan {
		return fmt.Errorf("scan size must be in [1, %d], got %d", MaxScan, o.ScanSize)
	}

	switch o.Distribution {
	case generator.Uniform:
	case generator.SelfSimilar:
		if o.Skew < 0 || o.Skew > 0.5 {
			return fmt.Errorf("selfsimilar skew must be in [0, 0.5], got %v", o.Skew)
		}
	case generator.Zipfian:
		if o.Skew < 0 || o.Skew >= 1 {
			return fmt.Errorf("zipfian skew must be in [0, 1), got %v", o.Skew)
		}
	default:
		return fmt.Errorf("unsupported key distribution: %v", o.Distribution)
	}

	if o.LatencySampling < 0 || o.LatencySampling > 1 {
		return fmt.Errorf("latency sampling must be in [0, 1], got %v", o.LatencySampling)
	}
	if o.SamplingInterval <= 0 {
		return fmt.Errorf("sampling interval must be positive")
	}

	switch o.Mode {
	case OperationMode:
	case TimeMode:
		if o.Duration < o.SamplingInterval {
			return fmt.Errorf("duration %v must cover at least one sampling interval of %v", o.Duration, o.SamplingInterval)
		}
	default:
		return fmt.Errorf("unsupported run mode: %v", o.Mode)
	}

	if o.BulkLoad && o.SkipLoad {
		return fmt.Errorf("bulk load and skip load are mutually exclusive")
	}
	if o.MaxRate < 0 {
		return fmt.Errorf("max rate cannot be negative")
	}
	return nil
}

// Ratios returns the operation weights indexed by generator.Operation.
func (o *Options) Ratios() [generator.NumOperations]float64 {
	return [generator.NumOperations]float64{o.ReadRatio, o.InsertRatio, o.UpdateRatio, o.RemoveRatio, o.ScanRatio}
}

func (o *Options) RatioSum() float64 {
	var sum float64
	for _, r := range o.Ratios() {
		sum += r
	}
	return sum
}

// Keyspace is the identifier range random keys are drawn from: the loaded
// records plus the inserts the run is expected to add.
func (o *Options) Keyspace() uint64 {
	return o.Records + uint64(float64(o.Operations)*o.InsertRatio)
}

// Samples is the number of monitor samples a time-bounded run takes.
func (o *Options) Samples() int {
	return int(o.Duration / o.SamplingInterval)
}

// KeyLength is the total key width handed to the index.
func (o *Options) KeyLength() int {
	return len(o.KeyPrefix) + o.KeySize
}

// OperationTable builds the sampler table for the configured ratios.
func (o *Options) OperationTable() *generator.OperationTable {
	return generator.NewOperationTable(o.ReadRatio, o.InsertRatio, o.UpdateRatio, o.RemoveRatio, o.ScanRatio)
}
