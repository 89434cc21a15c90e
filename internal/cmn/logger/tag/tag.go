// Package tag provides standardized attributes for structured logging.
//
// All keys use kebab-case. Use these helpers instead of raw strings so that
// log output stays consistent across packages.
package tag

import (
	"log/slog"
	"time"
)

// Error creates a tag for error values.
func Error(err error) slog.Attr {
	return slog.Any("err", err)
}

// Product creates a tag for a product identity (item short name).
func Product(id string) slog.Attr {
	return slog.String("product", id)
}

// Action creates a tag for a remote licensing action.
func Action(action string) slog.Attr {
	return slog.String("action", action)
}

// Status creates a tag for a license status value.
func Status(status string) slog.Attr {
	return slog.String("status", status)
}

// Outcome creates a tag for the branch an operation took.
func Outcome(outcome string) slog.Attr {
	return slog.String("outcome", outcome)
}

// Event creates a tag for host event names.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// User creates a tag for the acting user.
func User(name string) slog.Attr {
	return slog.String("user", name)
}

// Namespace creates a tag for a settings namespace.
func Namespace(ns string) slog.Attr {
	return slog.String("namespace", ns)
}

// File creates a tag for file paths.
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Dir creates a tag for directory paths.
func Dir(path string) slog.Attr {
	return slog.String("dir", path)
}

// URL creates a tag for URLs.
func URL(u string) slog.Attr {
	return slog.String("url", u)
}

// Addr creates a tag for network addresses.
func Addr(addr string) slog.Attr {
	return slog.String("addr", addr)
}

// Version creates a tag for version strings.
func Version(v string) slog.Attr {
	return slog.String("version", v)
}

// Schedule creates a tag for cron expressions.
func Schedule(spec string) slog.Attr {
	return slog.String("schedule", spec)
}

// Attempt creates a tag for attempt numbers.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Duration creates a tag for elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Interval creates a tag for wait intervals.
func Interval(d time.Duration) slog.Attr {
	return slog.Duration("interval", d)
}

// Hook creates a tag for a hook callback name.
func Hook(name string) slog.Attr {
	return slog.String("hook", name)
}

// Backend creates a tag for a storage backend name.
func Backend(name string) slog.Attr {
	return slog.String("backend", name)
}

// StatusCode creates a tag for HTTP status codes.
func StatusCode(code int) slog.Attr {
	return slog.Int("status-code", code)
}

// Operation creates a tag for a named operation.
func Operation(name string) slog.Attr {
	return slog.String("operation", name)
}

// Count creates a tag for a number of items.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}
