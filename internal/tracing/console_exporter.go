package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"

	"kvbench/internal/logging"
)

// ConsoleExporter writes finished spans to the structured log.
type ConsoleExporter struct {
	logger *logging.Logger
}

var _ trace.SpanExporter = (*ConsoleExporter)(nil)

// NewConsoleExporter creates a new console exporter
func NewConsoleExporter(logger *logging.Logger) *ConsoleExporter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ConsoleExporter{logger: logger.WithField("component", "trace")}
}

// ExportSpans logs one record per span.
func (ce *ConsoleExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	for _, span := range spans {
		ce.logger.Info("Span",
			"trace_id", span.SpanContext().TraceID().String(),
			"span_id", span.SpanContext().SpanID().String(),
			"parent_id", span.Parent().SpanID().String(),
			"name", span.Name(),
			"duration_ms", span.EndTime().Sub(span.StartTime()).Milliseconds(),
			"status", span.Status().Code.String(),
			"attributes", attributesToMap(span.Attributes()),
			"events", len(span.Events()),
		)
	}
	return nil
}

// Shutdown shuts down the exporter
func (ce *ConsoleExporter) Shutdown(ctx context.Context) error {
	return nil
}

// attributesToMap converts span attributes to a map
func attributesToMap(attrs []attribute.KeyValue) map[string]interface{} {
	result := make(map[string]interface{})
	for _, attr := range attrs {
		result[string(attr.Key)] = attr.Value.AsInterface()
	}
	return result
}
