package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"kvbench/internal/config"
	"kvbench/internal/logging"
)

// TracingService manages OpenTelemetry tracing
type TracingService struct {
	config   config.TracingConfig
	tracer   oteltrace.Tracer
	provider *trace.TracerProvider
}

// NewTracingService creates a new tracing service
func NewTracingService(cfg config.TracingConfig, logger *logging.Logger) (*TracingService, error) {
	if !cfg.Enabled {
		// Return a no-op tracer
		return &TracingService{
			config: cfg,
			tracer: otel.Tracer("kvbench-noop"),
		}, nil
	}

	// Create resource
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(cfg, logger)
	if err != nil {
		return nil, err
	}

	samplingRatio := cfg.SamplingRatio
	if samplingRatio <= 0 {
		samplingRatio = 1.0 // Default to sampling all traces
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(trace.TraceIDRatioBased(samplingRatio)),
	)

	// Set global tracer provider
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracingService{
		config:   cfg,
		tracer:   tp.Tracer("kvbench"),
		provider: tp,
	}, nil
}

func newExporter(cfg config.TracingConfig, logger *logging.Logger) (trace.SpanExporter, error) {
	switch cfg.ExporterType {
	case "jaeger":
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}
		return exporter, nil
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithHeaders(cfg.OTLPHeaders),
			otlptracehttp.WithInsecure(),
		)
		exporter, err := otlptrace.New(context.Background(), client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exporter, nil
	case "console", "":
		return NewConsoleExporter(logger), nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// StartSpan starts a new span
func (ts *TracingService) StartSpan(ctx context.Context, name string, opts ...oteltrace.SpanStartOption) (context.Context, oteltrace.Span) {
	return ts.tracer.Start(ctx, name, opts...)
}

// RecordError records an error in the current span
func (ts *TracingService) RecordError(span oteltrace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Close flushes pending spans and shuts the provider down.
func (ts *TracingService) Close(ctx context.Context) error {
	if ts.provider != nil {
		return ts.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer
func (ts *TracingService) Tracer() oteltrace.Tracer {
	return ts.tracer
}

// TracePhase runs fn inside a span named after a benchmark phase.
func (ts *TracingService) TracePhase(ctx context.Context, phase string, fn func(context.Context, oteltrace.Span) error, attrs ...attribute.KeyValue) error {
	ctx, span := ts.StartSpan(ctx, "bench."+phase,
		oteltrace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("bench.phase", phase),
			attribute.String("component", "bench"),
		}, attrs...)...),
	)
	defer span.End()

	if err := fn(ctx, span); err != nil {
		ts.RecordError(span, err)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// RunAttributes describes a benchmark run on its root span.
func RunAttributes(runID, indexName string, threads int, mode string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("bench.run_id", runID),
		attribute.String("bench.index", indexName),
		attribute.Int("bench.threads", threads),
		attribute.String("bench.mode", mode),
	}
}
