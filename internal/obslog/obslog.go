// Package obslog adapts the teacher's common/logger to the conductor's
// domain: activation ids and FSM paths in place of run/node ids.
//
// Grounded on common/logger/logger.go (same slog+tint/JSONHandler split,
// same stack-trace-on-Error behavior).
package obslog

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with the fields this module's components tag
// log lines with.
type Logger struct {
	*slog.Logger
}

// New builds a Logger. format "json" uses slog.JSONHandler (production);
// anything else uses tint for colored console output (local/dev).
func New(level, format string) *Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
			AddSource:  false,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithContext returns a logger tagged with the request's trace id, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if traceID := ctx.Value(traceIDKey{}); traceID != nil {
		return &Logger{Logger: l.With("trace_id", traceID)}
	}
	return l
}

type traceIDKey struct{}

// ContextWithTraceID stashes a trace id (e.g. an inbound X-Request-Id) on ctx
// so a later WithContext call picks it up. Callers at the transport boundary
// use this to thread an upstream request id down into conductor step logs.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// WithActivationID tags log lines with the external action-invocation id
// that triggered the current conductor step — the composer analogue of the
// teacher's WithRunID.
func (l *Logger) WithActivationID(id string) *Logger {
	return &Logger{Logger: l.With("activation_id", id)}
}

// WithPath tags log lines with the FSM instruction's labeled path (spec
// §4.4) — the composer analogue of the teacher's WithNodeID.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.With("path", path)}
}

// Error logs an error with a stack trace attached, matching the teacher's
// behavior of never losing the call stack on the error path.
func (l *Logger) Error(msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.Error(msg, args...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
