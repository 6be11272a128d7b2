package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"flagcli/internal/config"
)

// NewLogger creates the JSON logger described by cfg. The returned closer
// releases the log file, if one was opened; it is never nil.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var (
		output io.Writer
		closer io.Closer = nopCloser{}
	)

	switch strings.ToLower(cfg.Output) {
	case config.LogOutputFile:
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output, closer = file, file
	case config.LogOutputBoth:
		file, err := openLogFile(cfg.FilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output, closer = io.MultiWriter(os.Stdout, file), file
	default:
		output = os.Stdout
	}

	return NewLoggerWithWriter(output, cfg), closer, nil
}

// NewLoggerWithWriter creates the JSON logger writing to w.
func NewLoggerWithWriter(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: cfg.AddSource,
		Level:     ParseLogLevel(cfg.Level),
	})
	return slog.New(&contextHandler{Handler: handler})
}

// contextHandler wraps a slog.Handler to inject run_id and trace_id from context
type contextHandler struct {
	slog.Handler
}

// Handle adds run_id and trace_id to the record if present in context
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if runID := GetRunID(ctx); runID != "" {
		r.AddAttrs(slog.String("run_id", runID))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(slog.String("trace_id", sc.TraceID().String()))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new Handler with additional attributes
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup returns a new Handler with the given group name
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLogLevel converts string log level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// openLogFile opens or creates a log file with proper permissions
func openLogFile(filePath string) (*os.File, error) {
	if filePath == "" {
		filePath = config.DefaultLogFile
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
