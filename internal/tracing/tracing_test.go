package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"

	"kvbench/internal/config"
	"kvbench/internal/logging"
)

func newRecordingService() (*TracingService, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &TracingService{
		tracer:   tp.Tracer("test"),
		provider: tp,
	}, recorder
}

func TestNewTracingService_Disabled(t *testing.T) {
	ts, err := NewTracingService(config.TracingConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ts.Tracer() == nil {
		t.Fatal("Expected a no-op tracer")
	}

	// no-op spans still run the phase
	called := false
	err = ts.TracePhase(context.Background(), "load", func(ctx context.Context, span oteltrace.Span) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("Expected phase to run, called=%v err=%v", called, err)
	}
	if err := ts.Close(context.Background()); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNewTracingService_Console(t *testing.T) {
	var buf bytes.Buffer
	logCfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger := logging.NewLoggerTo(&logCfg, &buf)

	cfg := config.DefaultConfig().Tracing
	cfg.Enabled = true
	cfg.ExporterType = "console"

	ts, err := NewTracingService(cfg, logger)
	if err != nil {
		t.Fatalf("Failed to create tracing service: %v", err)
	}

	err = ts.TracePhase(context.Background(), "run", func(ctx context.Context, span oteltrace.Span) error {
		return nil
	}, RunAttributes("run-1", "btreemap", 4, "operation")...)
	if err != nil {
		t.Fatalf("TracePhase failed: %v", err)
	}
	if err := ts.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"name":"bench.run"`) {
		t.Errorf("Expected exported span in log output, got %s", out)
	}
	if !strings.Contains(out, "btreemap") {
		t.Errorf("Expected run attributes in log output, got %s", out)
	}
}

func TestNewTracingService_UnsupportedExporter(t *testing.T) {
	cfg := config.DefaultConfig().Tracing
	cfg.Enabled = true
	cfg.ExporterType = "carrier-pigeon"

	if _, err := NewTracingService(cfg, nil); err == nil {
		t.Error("Expected error for unsupported exporter")
	}
}

func TestTracePhase_Error(t *testing.T) {
	ts, recorder := newRecordingService()
	boom := errors.New("missing key")

	err := ts.TracePhase(context.Background(), "verify", func(ctx context.Context, span oteltrace.Span) error {
		return boom
	}, attribute.Int("bench.records", 10))
	if !errors.Is(err, boom) {
		t.Fatalf("Expected phase error to propagate, got %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "bench.verify" {
		t.Errorf("Expected span bench.verify, got %s", span.Name())
	}
	if span.Status().Code != codes.Error {
		t.Errorf("Expected error status, got %v", span.Status().Code)
	}

	found := false
	for _, kv := range span.Attributes() {
		if kv.Key == "bench.records" && kv.Value.AsInt64() == 10 {
			found = true
		}
	}
	if !found {
		t.Error("Expected bench.records attribute on span")
	}
}

func TestTracePhase_Nested(t *testing.T) {
	ts, recorder := newRecordingService()

	err := ts.TracePhase(context.Background(), "benchmark", func(ctx context.Context, parent oteltrace.Span) error {
		return ts.TracePhase(ctx, "load", func(ctx context.Context, span oteltrace.Span) error {
			if span.SpanContext().TraceID() != parent.SpanContext().TraceID() {
				t.Error("Expected child span in the parent's trace")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("TracePhase failed: %v", err)
	}
	if len(recorder.Ended()) != 2 {
		t.Errorf("Expected 2 spans, got %d", len(recorder.Ended()))
	}
}
