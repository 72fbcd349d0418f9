// Package report turns the statistics of a run into throughput figures,
// per-window samples and latency percentiles, and prints them.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"kvbench/internal/bench"
	"kvbench/internal/generator"
	"kvbench/internal/sysinfo"
	"kvbench/internal/workload"
)

// Percentiles reported for sampled latencies, as fractions.
var Percentiles = []float64{0.5, 0.9, 0.99, 0.999, 0.9999, 0.99999}

// OperationStats is the breakdown for one operation kind.
type OperationStats struct {
	Operation           string  `json:"operation"`
	Completed           uint64  `json:"completed"`
	Succeeded           uint64  `json:"succeeded"`
	CompletedThroughput float64 `json:"completed_ops_per_sec"`
	SucceededThroughput float64 `json:"succeeded_ops_per_sec"`
}

// LatencyStats summarizes the sampled operation latencies.
type LatencyStats struct {
	Observed    int                      `json:"observed"`
	Min         time.Duration            `json:"min_ns"`
	Max         time.Duration            `json:"max_ns"`
	Mean        time.Duration            `json:"mean_ns"`
	Percentiles map[string]time.Duration `json:"percentiles_ns"`
}

// Summary is the reportable view of a run.
type Summary struct {
	Mode                string           `json:"mode"`
	Elapsed             time.Duration    `json:"elapsed_ns"`
	Operations          uint64           `json:"operations"`
	Succeeded           uint64           `json:"succeeded"`
	CompletedThroughput float64          `json:"completed_ops_per_sec"`
	SucceededThroughput float64          `json:"succeeded_ops_per_sec"`
	Breakdown           []OperationStats `json:"breakdown"`
	Samples             []uint64         `json:"samples"`
	Latency             *LatencyStats    `json:"latency,omitempty"`
}

// Summarize aggregates a run. Latencies are only reported when sampling was
// enabled and at least one operation was observed.
func Summarize(result *bench.Result, opts workload.Options) *Summary {
	seconds := result.Elapsed.Seconds()
	perSecond := func(n uint64) float64 {
		if seconds <= 0 {
			return 0
		}
		return float64(n) / seconds
	}

	s := &Summary{
		Mode:       result.Mode.String(),
		Elapsed:    result.Elapsed,
		Operations: result.Operations(),
		Succeeded:  result.Succeeded(),
		Samples:    result.SampleDeltas(),
	}
	s.CompletedThroughput = perSecond(s.Operations)
	s.SucceededThroughput = perSecond(s.Succeeded)

	// same order as the printed report
	for _, op := range []generator.Operation{generator.Insert, generator.Read, generator.Update, generator.Remove, generator.Scan} {
		completed, succeeded := result.Completed(op), result.SucceededOf(op)
		s.Breakdown = append(s.Breakdown, OperationStats{
			Operation:           op.String(),
			Completed:           completed,
			Succeeded:           succeeded,
			CompletedThroughput: perSecond(completed),
			SucceededThroughput: perSecond(succeeded),
		})
	}

	if opts.LatencySampling > 0 {
		s.Latency = CalculateLatencyStats(result.Latencies())
	}
	return s
}

// CalculateLatencyStats sorts latencies and picks the reported percentiles
// by rank. It returns nil for an empty input.
func CalculateLatencyStats(latencies []time.Duration) *LatencyStats {
	if len(latencies) == 0 {
		return nil
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var total time.Duration
	for _, l := range sorted {
		total += l
	}

	n := len(sorted)
	stats := &LatencyStats{
		Observed:    n,
		Min:         sorted[0],
		Max:         sorted[n-1],
		Mean:        total / time.Duration(n),
		Percentiles: make(map[string]time.Duration, len(Percentiles)),
	}
	for _, p := range Percentiles {
		stats.Percentiles[PercentileLabel(p)] = sorted[rank(p, n)]
	}
	return stats
}

func rank(p float64, n int) int {
	i := int(p * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// PercentileLabel formats a fraction as the label used in reports, e.g.
// 0.999 becomes "99.9%".
func PercentileLabel(p float64) string {
	return fmt.Sprintf("%s%%", trimFloat(p*100))
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// WriteText prints the summary in the classic tab-indented layout.
func WriteText(w io.Writer, s *Summary) error {
	ew := &errWriter{w: w}

	ew.printf("\tRun time: %.4f milliseconds\n", float64(s.Elapsed)/float64(time.Millisecond))
	ew.printf("Results:\n")
	ew.printf("\tOperations: %d\n", s.Operations)
	ew.printf("\tThroughput:\n")
	ew.printf("\t- Completed: %.4f ops/s\n", s.CompletedThroughput)
	ew.printf("\t- Succeeded: %.4f ops/s\n", s.SucceededThroughput)
	ew.printf("\tBreakdown:\n")
	for _, b := range s.Breakdown {
		name := capitalize(b.Operation)
		ew.printf("\t- %s completed: %.4f ops/s\n", name, b.CompletedThroughput)
		ew.printf("\t- %s succeeded: %.4f ops/s\n", name, b.SucceededThroughput)
	}

	ew.printf("Samples:\n")
	for _, n := range s.Samples {
		ew.printf("\t%d\n", n)
	}

	if s.Latency != nil {
		ew.printf("Latencies (%d operations observed):\n", s.Latency.Observed)
		ew.printf("\tmin: %d\n", s.Latency.Min.Nanoseconds())
		for _, p := range Percentiles {
			label := PercentileLabel(p)
			ew.printf("\t%s: %d\n", label, s.Latency.Percentiles[label].Nanoseconds())
		}
		ew.printf("\tmax: %d\n", s.Latency.Max.Nanoseconds())
	}
	return ew.err
}

// Document is everything one benchmark invocation reports. In JSON mode it
// is printed as a single document; baselines for Compare are read back from
// it.
type Document struct {
	RunID       string               `json:"run_id"`
	Index       string               `json:"index"`
	Environment *sysinfo.Environment `json:"environment,omitempty"`
	Options     workload.Options     `json:"options"`
	LoadTime    time.Duration        `json:"load_time_ns"`
	Summary     *Summary             `json:"summary"`
}

// WriteJSON prints v as one indented JSON document.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Write prints the results of doc in the named format. The text format only
// covers the summary; the environment and options blocks are printed before
// the run.
func Write(w io.Writer, format string, doc *Document) error {
	switch format {
	case "json":
		return WriteJSON(w, doc)
	case "text", "":
		return WriteText(w, doc.Summary)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// ReadDocument decodes a report written by Write in JSON format.
func ReadDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Summary == nil {
		return nil, fmt.Errorf("report has no summary")
	}
	return &doc, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// errWriter keeps the first write error so the printers can ignore it
// until the end.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
