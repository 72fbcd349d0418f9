package report

import (
	"fmt"
	"io"
	"math"
	"sort"
)

// Direction says which way a metric improves.
type Direction string

const (
	HigherIsBetter Direction = "higher"
	LowerIsBetter  Direction = "lower"
)

// Thresholds are the relative changes, in percent, below which a metric
// counts as unchanged.
type Thresholds struct {
	Throughput float64 `yaml:"throughput" json:"throughput"`
	Latency    float64 `yaml:"latency" json:"latency"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Throughput: 5, Latency: 10}
}

// MetricComparison is the change of one metric between two runs.
type MetricComparison struct {
	Metric        string    `json:"metric"`
	Baseline      float64   `json:"baseline"`
	Current       float64   `json:"current"`
	ChangePercent float64   `json:"change_percent"`
	Better        Direction `json:"better"`
	Threshold     float64   `json:"threshold"`
	Assessment    string    `json:"assessment"` // improved, regressed or unchanged
}

// Comparison is the outcome of comparing a run to a baseline.
type Comparison struct {
	Metrics      []MetricComparison `json:"metrics"`
	Regressions  []string           `json:"regressions,omitempty"`
	Improvements []string           `json:"improvements,omitempty"`
}

// Regressed reports whether any metric got significantly worse.
func (c *Comparison) Regressed() bool {
	return len(c.Regressions) > 0
}

// Compare lines up the throughput and latency figures two summaries share.
// Operations absent from either breakdown and latencies missing from either
// run are left out.
func Compare(baseline, current *Summary, th Thresholds) *Comparison {
	c := &Comparison{}

	c.add("completed_ops_per_sec", baseline.CompletedThroughput, current.CompletedThroughput, HigherIsBetter, th.Throughput)
	c.add("succeeded_ops_per_sec", baseline.SucceededThroughput, current.SucceededThroughput, HigherIsBetter, th.Throughput)

	base := make(map[string]OperationStats, len(baseline.Breakdown))
	for _, b := range baseline.Breakdown {
		base[b.Operation] = b
	}
	for _, cur := range current.Breakdown {
		b, ok := base[cur.Operation]
		if !ok {
			continue
		}
		c.add(cur.Operation+"_completed_ops_per_sec", b.CompletedThroughput, cur.CompletedThroughput, HigherIsBetter, th.Throughput)
	}

	if baseline.Latency != nil && current.Latency != nil {
		labels := make([]string, 0, len(current.Latency.Percentiles))
		for label := range current.Latency.Percentiles {
			if _, ok := baseline.Latency.Percentiles[label]; ok {
				labels = append(labels, label)
			}
		}
		sort.Strings(labels)
		c.add("latency_mean_ns", float64(baseline.Latency.Mean), float64(current.Latency.Mean), LowerIsBetter, th.Latency)
		for _, label := range labels {
			c.add("latency_"+label+"_ns",
				float64(baseline.Latency.Percentiles[label]),
				float64(current.Latency.Percentiles[label]),
				LowerIsBetter, th.Latency)
		}
	}
	return c
}

func (c *Comparison) add(metric string, baseline, current float64, better Direction, threshold float64) {
	var change float64
	if baseline != 0 {
		change = (current - baseline) / baseline * 100
	}

	assessment := "unchanged"
	if math.Abs(change) > threshold {
		if (better == HigherIsBetter) == (change > 0) {
			assessment = "improved"
			c.Improvements = append(c.Improvements, fmt.Sprintf("%s improved by %.2f%%", metric, math.Abs(change)))
		} else {
			assessment = "regressed"
			c.Regressions = append(c.Regressions, fmt.Sprintf("%s regressed by %.2f%%", metric, math.Abs(change)))
		}
	}

	c.Metrics = append(c.Metrics, MetricComparison{
		Metric:        metric,
		Baseline:      baseline,
		Current:       current,
		ChangePercent: change,
		Better:        better,
		Threshold:     threshold,
		Assessment:    assessment,
	})
}

// WriteComparison prints one line per metric followed by the verdict.
func WriteComparison(w io.Writer, c *Comparison) error {
	ew := &errWriter{w: w}
	ew.printf("Comparison:\n")
	for _, m := range c.Metrics {
		ew.printf("\t%-32s %16.4f -> %16.4f  %+8.2f%%  %s\n", m.Metric, m.Baseline, m.Current, m.ChangePercent, m.Assessment)
	}
	if c.Regressed() {
		ew.printf("Regressions:\n")
		for _, r := range c.Regressions {
			ew.printf("\t- %s\n", r)
		}
	} else {
		ew.printf("No significant regressions.\n")
	}
	return ew.err
}
