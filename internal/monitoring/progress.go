// Package monitoring exposes the progress of a running benchmark over HTTP:
// a JSON view of the monitor samples and Prometheus metrics.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kvbench/internal/bench"
)

const namespace = "kvbench"

// Phases a benchmark moves through.
var Phases = []string{"idle", "load", "verify", "run", "report", "done"}

// ProgressSnapshot is the JSON view served by the progress endpoint.
type ProgressSnapshot struct {
	RunID      string        `json:"run_id,omitempty"`
	Index      string        `json:"index,omitempty"`
	Phase      string        `json:"phase"`
	Operations uint64        `json:"operations"`
	Throughput float64       `json:"throughput_ops_per_sec"`
	Samples    []uint64      `json:"samples"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Uptime     time.Duration `json:"uptime_ns"`
}

// Progress implements bench.SampleObserver. It is safe for concurrent use
// by the monitor goroutine and HTTP handlers.
type Progress struct {
	mu         sync.RWMutex
	runID      string
	index      string
	phase      string
	samples    []uint64
	last       bench.Sample
	throughput float64
	created    time.Time

	registry      *prometheus.Registry
	operations    prometheus.Gauge
	rate          prometheus.Gauge
	samplesTotal  prometheus.Counter
	phaseGauge    *prometheus.GaugeVec
	phaseDuration *prometheus.HistogramVec
}

var (
	_ bench.SampleObserver = (*Progress)(nil)
	_ bench.PhaseObserver  = (*Progress)(nil)
)

// NewProgress creates a progress tracker with its own metrics registry.
func NewProgress(runID, indexName string) *Progress {
	labels := prometheus.Labels{"index": indexName}
	p := &Progress{
		runID:    runID,
		index:    indexName,
		phase:    "idle",
		created:  time.Now(),
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_operations",
			Help:        "Operations issued by the current run.",
			ConstLabels: labels,
		}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_throughput_ops_per_second",
			Help:        "Throughput over the last sampling window.",
			ConstLabels: labels,
		}),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "monitor_samples_total",
			Help:        "Samples taken by the benchmark monitor.",
			ConstLabels: labels,
		}),
		phaseGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "phase",
			Help:        "1 for the phase the benchmark is in, 0 otherwise.",
			ConstLabels: labels,
		}, []string{"phase"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "phase_duration_seconds",
			Help:        "Wall time of completed benchmark phases.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"phase"}),
	}

	p.registry.MustRegister(
		p.operations,
		p.rate,
		p.samplesTotal,
		p.phaseGauge,
		p.phaseDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	p.setPhaseGauge("idle")
	return p
}

// ObserveSample records a monitor sample.
func (p *Progress) ObserveSample(s bench.Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.Seq == 0 {
		p.samples = p.samples[:0]
		p.last = bench.Sample{}
	}
	window := (s.Elapsed - p.last.Elapsed).Seconds()
	if window > 0 && s.Operations >= p.last.Operations {
		p.throughput = float64(s.Operations-p.last.Operations) / window
	}
	p.samples = append(p.samples, s.Operations)
	p.last = s

	p.operations.Set(float64(s.Operations))
	p.rate.Set(p.throughput)
	p.samplesTotal.Inc()
}

// SetPhase switches the current phase.
func (p *Progress) SetPhase(phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
	p.setPhaseGauge(phase)
}

// PhaseDone records how long a phase took.
func (p *Progress) PhaseDone(phase string, d time.Duration) {
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *Progress) setPhaseGauge(current string) {
	for _, ph := range Phases {
		v := 0.0
		if ph == current {
			v = 1
		}
		p.phaseGauge.WithLabelValues(ph).Set(v)
	}
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		RunID:      p.runID,
		Index:      p.index,
		Phase:      p.phase,
		Operations: p.last.Operations,
		Throughput: p.throughput,
		Samples:    append([]uint64(nil), p.samples...),
		Elapsed:    p.last.Elapsed,
		Uptime:     time.Since(p.created),
	}
}

// Registry is the registry the metrics endpoint serves.
func (p *Progress) Registry() *prometheus.Registry {
	return p.registry
}
