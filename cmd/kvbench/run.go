package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"kvbench/internal/bench"
	"kvbench/internal/config"
	"kvbench/internal/index"
	"kvbench/internal/logging"
	"kvbench/internal/monitoring"
	"kvbench/internal/report"
	"kvbench/internal/sysinfo"
	"kvbench/internal/tracing"
)

// shutdownTimeout bounds flushing traces and stopping the metrics server.
const shutdownTimeout = 5 * time.Second

// runner carries the per-invocation collaborators of a benchmark.
type runner struct {
	cfg      *config.Config
	logger   *logging.Logger
	tracer   *tracing.TracingService
	progress *monitoring.Progress
}

func runBenchmark(ctx context.Context, stdout io.Writer, cfg *config.Config) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogger(&cfg.Logging)
	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	logger = logger.WithContext(ctx).WithField(string(logging.IndexKey), cfg.Index.Name)

	out, closeOut, err := openReport(cfg.Report.Output, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	tracer, err := tracing.NewTracingService(cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracer.Close(sctx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	r := &runner{cfg: cfg, logger: logger, tracer: tracer}

	if cfg.Metrics.Enabled {
		r.progress = monitoring.NewProgress(runID, cfg.Index.Name)
		srv := monitoring.NewServer(cfg.Metrics.Address, monitoring.NewRouter(r.progress, logger, cfg.Metrics.Path), logger)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("Failed to stop monitoring server", "error", err)
			}
		}()
	}

	var env *sysinfo.Environment
	if cfg.Report.Environment {
		e := sysinfo.Detect()
		env = &e
	}

	text := cfg.Report.Format != "json"
	if text {
		if env != nil {
			if err := env.Write(out); err != nil {
				return err
			}
		}
		if err := report.WriteOptions(out, cfg.Index.Name, cfg.Benchmark); err != nil {
			return err
		}
	}

	idx, err := index.Open(cfg.Index.Name, cfg.IndexConfig())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := idx.Close(); cerr != nil {
			logger.Warn("Failed to close index", "error", cerr)
		}
	}()

	b, err := bench.New(idx, cfg.Benchmark, logger)
	if err != nil {
		return err
	}
	if r.progress != nil {
		b.SetObserver(r.progress)
	}

	var (
		loadTime time.Duration
		result   *bench.Result
	)
	attrs := tracing.RunAttributes(runID, cfg.Index.Name, cfg.Benchmark.Threads, cfg.Benchmark.Mode.String())
	err = tracer.TracePhase(ctx, "benchmark", func(ctx context.Context, _ oteltrace.Span) error {
		start := time.Now()
		if err := r.phase(ctx, "load", func(ctx context.Context, span oteltrace.Span) error {
			span.SetAttributes(
				attribute.Int64("bench.records", int64(cfg.Benchmark.Records)),
				attribute.Bool("bench.bulk_load", cfg.Benchmark.BulkLoad),
			)
			return b.Load(ctx)
		}); err != nil {
			return err
		}
		loadTime = time.Since(start)

		return r.phase(ctx, "run", func(ctx context.Context, span oteltrace.Span) error {
			var err error
			result, err = b.Run(ctx)
			if result != nil {
				span.SetAttributes(
					attribute.Int64("bench.operations", int64(result.Operations())),
					attribute.Int64("bench.elapsed_ns", result.Elapsed.Nanoseconds()),
				)
			}
			return err
		})
	}, attrs...)
	if err != nil {
		logger.Error("Benchmark failed", "error", err)
		return err
	}

	r.setPhase("report")
	summary := report.Summarize(result, cfg.Benchmark)
	logger.Performance(ctx, "throughput", summary.CompletedThroughput, "ops/s", map[string]string{
		"mode":    summary.Mode,
		"threads": fmt.Sprint(cfg.Benchmark.Threads),
	})

	err = report.Write(out, cfg.Report.Format, &report.Document{
		RunID:       runID,
		Index:       cfg.Index.Name,
		Environment: env,
		Options:     cfg.Benchmark,
		LoadTime:    loadTime,
		Summary:     summary,
	})
	r.setPhase("done")
	return err
}

// phase runs fn as a traced, timed and published benchmark phase.
func (r *runner) phase(ctx context.Context, name string, fn func(context.Context, oteltrace.Span) error) error {
	r.setPhase(name)
	start := time.Now()
	err := r.tracer.TracePhase(ctx, name, fn)
	if r.progress != nil {
		r.progress.PhaseDone(name, time.Since(start))
	}
	return err
}

func (r *runner) setPhase(name string) {
	if r.progress != nil {
		r.progress.SetPhase(name)
	}
}

// openReport resolves the report destination. "stdout" and "" write to
// stdout, "stderr" to standard error, anything else is a file path.
func openReport(output string, stdout io.Writer) (io.Writer, func() error, error) {
	switch output {
	case "", "stdout":
		return stdout, func() error { return nil }, nil
	case "stderr":
		return os.Stderr, func() error { return nil }, nil
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, f.Close, nil
}
