// Package checker cross-checks an index against an in-memory mirror by
// replaying the same seeded operations on both.
package checker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"kvbench/internal/index"
	"kvbench/internal/index/btreemap"
	"kvbench/internal/logging"
)

const (
	keySize   = 8
	valueSize = 8

	// maxReported bounds how many mismatches a Report keeps.
	maxReported = 32
)

var ErrMismatch = errors.New("index disagrees with mirror")

// Options sizes a check run.
type Options struct {
	Records    uint64 `yaml:"records" json:"records"`
	Operations uint64 `yaml:"operations" json:"operations"`
	ScanSize   int    `yaml:"scan_size" json:"scan_size"`
	Scans      uint64 `yaml:"scans" json:"scans"`
	Seed       uint64 `yaml:"seed" json:"seed"`
	SkipScan   bool   `yaml:"skip_scan" json:"skip_scan"`
	FailFast   bool   `yaml:"fail_fast" json:"fail_fast"`
}

// DefaultOptions mirrors the proportions of the classic tree checker at a
// tenth of its size.
func DefaultOptions() Options {
	return Options{
		Records:    1_000_000,
		Operations: 500_000,
		ScanSize:   100,
		Scans:      100_000,
		Seed:       1729,
	}
}

// IndexConfig is the configuration a checked index must be opened with.
func IndexConfig() index.Config {
	return index.Config{KeySize: keySize, ValueSize: valueSize, Threads: 1}
}

// Mismatch describes one operation where index and mirror disagreed.
type Mismatch struct {
	Phase string `json:"phase"`
	Key   uint64 `json:"key"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s key=%d: want %s, got %s", m.Phase, m.Key, m.Want, m.Got)
}

// PhaseResult counts the work done in one phase.
type PhaseResult struct {
	Name       string        `json:"name"`
	Operations uint64        `json:"operations"`
	Mismatches uint64        `json:"mismatches"`
	Duration   time.Duration `json:"duration"`
}

// Report is the outcome of a check.
type Report struct {
	Phases     []PhaseResult `json:"phases"`
	Mismatches []Mismatch    `json:"mismatches,omitempty"`
}

// Total returns the number of mismatches across all phases.
func (r *Report) Total() uint64 {
	var n uint64
	for _, p := range r.Phases {
		n += p.Mismatches
	}
	return n
}

// Checker drives one check run.
type Checker struct {
	idx    index.Index
	mirror *btreemap.Map
	opts   Options
	logger *logging.Logger
	rng    *rand.Rand
	report *Report
}

// New prepares a check of idx. idx must be empty and opened with
// IndexConfig.
func New(idx index.Index, opts Options, logger *logging.Logger) (*Checker, error) {
	if idx == nil {
		return nil, errors.New("checker: nil index")
	}
	if opts.Records == 0 {
		return nil, errors.New("checker: records must be positive")
	}
	if opts.ScanSize <= 0 {
		opts.ScanSize = 100
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Checker{
		idx:    idx,
		mirror: btreemap.New(IndexConfig()),
		opts:   opts,
		logger: logger.WithField("component", "checker"),
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		report: &Report{},
	}, nil
}

type phase struct {
	name string
	n    uint64
	step func(c *Checker) *Mismatch
}

// Run executes every phase and returns ErrMismatch if any operation
// disagreed. The report is returned in both cases.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	phases := []phase{
		{"insert", c.opts.Records, nil},
		{"find", c.opts.Operations, (*Checker).find},
		{"update", c.opts.Operations, (*Checker).update},
		{"find", c.opts.Operations, (*Checker).find},
		{"remove", c.opts.Operations, (*Checker).remove},
		{"find", c.opts.Operations, (*Checker).find},
	}
	if !c.opts.SkipScan {
		phases = append(phases, phase{"scan", c.opts.Scans, (*Checker).scan})
	}

	var insertID uint64
	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return c.report, err
		}

		c.logger.PhaseStart(ctx, p.name, "operations", p.n)
		start := time.Now()
		res := PhaseResult{Name: p.name}
		for i := uint64(0); i < p.n; i++ {
			var m *Mismatch
			if p.step == nil {
				m = c.insert(insertID)
				insertID++
			} else {
				m = p.step(c)
			}
			res.Operations++
			if m != nil {
				res.Mismatches++
				c.record(*m)
				if c.opts.FailFast {
					break
				}
			}
		}
		res.Duration = time.Since(start)
		c.report.Phases = append(c.report.Phases, res)

		var err error
		if res.Mismatches > 0 {
			err = fmt.Errorf("%w: %d in %s", ErrMismatch, res.Mismatches, p.name)
		}
		c.logger.PhaseEnd(ctx, p.name, res.Duration, err, "operations", res.Operations, "mismatches", res.Mismatches)
		if err != nil && c.opts.FailFast {
			return c.report, err
		}
	}

	if total := c.report.Total(); total > 0 {
		return c.report, fmt.Errorf("%w: %d operations", ErrMismatch, total)
	}
	return c.report, nil
}

func (c *Checker) record(m Mismatch) {
	if len(c.report.Mismatches) < maxReported {
		c.report.Mismatches = append(c.report.Mismatches, m)
	}
}

func encode(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (c *Checker) randomKey() uint64 {
	return c.rng.Uint64N(c.opts.Records)
}

func (c *Checker) insert(id uint64) *Mismatch {
	key, value := encode(id), encode(c.rng.Uint64())
	want := c.mirror.Insert(key, value)
	got := c.idx.Insert(key, value)
	if want != got {
		return &Mismatch{Phase: "insert", Key: id, Want: fmt.Sprint(want), Got: fmt.Sprint(got)}
	}
	return nil
}

func (c *Checker) find() *Mismatch { return c.findKey(c.randomKey()) }

func (c *Checker) findKey(id uint64) *Mismatch {
	key := encode(id)
	want := make([]byte, valueSize)
	got := make([]byte, valueSize)
	wantOK := c.mirror.Find(key, want)
	gotOK := c.idx.Find(key, got)
	switch {
	case wantOK != gotOK:
		return &Mismatch{Phase: "find", Key: id, Want: fmt.Sprint(wantOK), Got: fmt.Sprint(gotOK)}
	case wantOK && !bytes.Equal(want, got):
		return &Mismatch{Phase: "find", Key: id, Want: fmt.Sprintf("%x", want), Got: fmt.Sprintf("%x", got)}
	}
	return nil
}

func (c *Checker) update() *Mismatch {
	id := c.randomKey()
	key, value := encode(id), encode(c.rng.Uint64())
	want := c.mirror.Update(key, value)
	got := c.idx.Update(key, value)
	if want != got {
		return &Mismatch{Phase: "update", Key: id, Want: fmt.Sprint(want), Got: fmt.Sprint(got)}
	}
	return nil
}

func (c *Checker) remove() *Mismatch {
	id := c.randomKey()
	key := encode(id)
	want := c.mirror.Remove(key)
	got := c.idx.Remove(key)
	if want != got {
		return &Mismatch{Phase: "remove", Key: id, Want: fmt.Sprint(want), Got: fmt.Sprint(got)}
	}
	return nil
}

func (c *Checker) scan() *Mismatch {
	id := c.randomKey()
	key := encode(id)
	n := c.opts.ScanSize
	want := make([]byte, n*valueSize)
	got := make([]byte, n*valueSize)
	wantN := c.mirror.Scan(key, n, want)
	gotN := c.idx.Scan(key, n, got)
	switch {
	case wantN != gotN:
		return &Mismatch{Phase: "scan", Key: id, Want: fmt.Sprintf("%d records", wantN), Got: fmt.Sprintf("%d records", gotN)}
	case !bytes.Equal(want[:wantN*valueSize], got[:gotN*valueSize]):
		return &Mismatch{Phase: "scan", Key: id, Want: "matching values", Got: "different values"}
	}
	return nil
}
