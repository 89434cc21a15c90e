package logger

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

var defaultLogger = NewLogger(WithFormat("text"))

// WithLogger returns a new context carrying the given logger.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// WithValues returns a context whose logger carries the given slog.Attr
// values and key/value pairs. A trailing key without value is paired with
// "MISSING_VALUE".
func WithValues(ctx context.Context, keyvals ...any) context.Context {
	for i := 0; i < len(keyvals); i++ {
		if _, ok := keyvals[i].(slog.Attr); ok {
			continue
		}
		if i+1 == len(keyvals) {
			keyvals = append(keyvals, "MISSING_VALUE")
		}
		i++
	}
	return WithLogger(ctx, FromContext(ctx).With(keyvals...))
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return defaultLogger
	}
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return defaultLogger
}

// Debug logs a message with debug level.
func Debug(ctx context.Context, msg string, tags ...any) {
	FromContext(ctx).Debug(msg, tags...)
}

// Info logs a message with info level.
func Info(ctx context.Context, msg string, tags ...any) {
	FromContext(ctx).Info(msg, tags...)
}

// Warn logs a message with warn level.
func Warn(ctx context.Context, msg string, tags ...any) {
	FromContext(ctx).Warn(msg, tags...)
}

// Error logs a message with error level.
func Error(ctx context.Context, msg string, tags ...any) {
	FromContext(ctx).Error(msg, tags...)
}

// Infof logs a formatted message with info level.
func Infof(ctx context.Context, format string, v ...any) {
	FromContext(ctx).Infof(format, v...)
}

// Warnf logs a formatted message with warn level.
func Warnf(ctx context.Context, format string, v ...any) {
	FromContext(ctx).Warnf(format, v...)
}
