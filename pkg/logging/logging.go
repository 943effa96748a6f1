package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseLevel maps debug, info, warn/warning and error to a slog level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// NewHandler builds a text handler, or a JSON one when format is "json".
func NewHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// InitLogging configures the default slog logger. Empty arguments fall back
// to LOG_LEVEL and LOG_FORMAT, then to info and text.
func InitLogging(level, format string) *slog.Logger {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}

	logger := slog.New(NewHandler(os.Stdout, level, format))
	slog.SetDefault(logger)
	return logger
}

type ctxKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// LogError logs err with the operation that failed and any extra attributes.
func LogError(logger *slog.Logger, operation string, err error, attrs ...any) {
	args := append([]any{slog.String("operation", operation), slog.Any("error", err)}, attrs...)
	logger.Error(operation+" failed", args...)
}

// LogOperation logs how long an operation took. Use it with defer:
//
//	defer logging.LogOperation(logger, "catalog.load", time.Now())
func LogOperation(logger *slog.Logger, operation string, start time.Time, attrs ...any) {
	args := append([]any{slog.String("operation", operation), slog.Duration("duration", time.Since(start))}, attrs...)
	logger.Debug(operation+" completed", args...)
}
