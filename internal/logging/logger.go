package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"kvbench/internal/config"
)

type Logger struct {
	*slog.Logger
	config *config.LoggingConfig
}

type ContextKey string

const (
	RunIDKey   ContextKey = "run_id"
	PhaseKey   ContextKey = "phase"
	IndexKey   ContextKey = "index"
	RequestKey ContextKey = "request_id"
)

// NewLogger creates a new structured logger using slog
func NewLogger(cfg *config.LoggingConfig) *Logger {
	return newLogger(cfg, openOutput(cfg.Output))
}

// NewLoggerTo builds a logger that writes to w regardless of cfg.Output.
func NewLoggerTo(cfg *config.LoggingConfig, w io.Writer) *Logger {
	return newLogger(cfg, w)
}

func openOutput(output string) io.Writer {
	switch output {
	case "stdout":
		return os.Stdout
	case "stderr", "":
		return os.Stderr
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		slog.Warn("Failed to open log file, using stderr", "error", err, "file", output)
		return os.Stderr
	}
	return file
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cfg *config.LoggingConfig, writer io.Writer) *Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text", "console":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return &Logger{
		Logger: logger,
		config: cfg,
	}
}

// Discard returns a logger that drops every record and leaves the default
// slog logger untouched.
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		config: &config.LoggingConfig{},
	}
}

// NewRunID returns a fresh identifier for one benchmark invocation.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID stores the run identifier in ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithPhase stores the current benchmark phase in ctx.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, PhaseKey, phase)
}

// RunID extracts the run identifier from ctx.
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// WithContext creates a new logger with context values
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger
	for _, key := range []ContextKey{RunIDKey, IndexKey, PhaseKey, RequestKey} {
		if v := ctx.Value(key); v != nil {
			logger = logger.With(string(key), v)
		}
	}
	return &Logger{
		Logger: logger,
		config: l.config,
	}
}

// WithFields creates a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	var args []interface{}
	for key, value := range fields {
		args = append(args, key, value)
	}

	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
	}
}

// WithField creates a new logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(key, value),
		config: l.config,
	}
}

// WithError creates a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With("error", err.Error()),
		config: l.config,
	}
}

// PhaseStart logs the beginning of a benchmark phase.
func (l *Logger) PhaseStart(ctx context.Context, phase string, args ...interface{}) {
	l.WithContext(ctx).Info("Phase started", append([]interface{}{"phase", phase}, args...)...)
}

// PhaseEnd logs a finished phase with its duration, at error level when
// err is set.
func (l *Logger) PhaseEnd(ctx context.Context, phase string, duration time.Duration, err error, args ...interface{}) {
	args = append([]interface{}{
		"phase", phase,
		"duration_ms", duration.Milliseconds(),
	}, args...)

	logger := l.WithContext(ctx)
	if err != nil {
		logger.Error("Phase failed", append(args, "error", err.Error())...)
		return
	}
	logger.Info("Phase completed", args...)
}

// Performance logs performance metrics
func (l *Logger) Performance(ctx context.Context, metric string, value float64, unit string, tags map[string]string) {
	if l.config != nil && !l.config.EnablePerformanceLog {
		return
	}
	args := []interface{}{
		"metric", metric,
		"value", value,
		"unit", unit,
	}

	for key, value := range tags {
		args = append(args, "tag_"+key, value)
	}

	l.WithContext(ctx).Info("Performance metric", args...)
}

func slogLevelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}
