package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the structured logger used across the license tooling.
type Logger interface {
	Debug(msg string, tags ...any)
	Info(msg string, tags ...any)
	Warn(msg string, tags ...any)
	Error(msg string, tags ...any)

	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)

	With(attrs ...any) Logger
	Handler() slog.Handler
}

var _ Logger = (*appLogger)(nil)

type appLogger struct {
	logger *slog.Logger
}

type config struct {
	debug  bool
	format string
	writer io.Writer
	quiet  bool
}

// Option configures NewLogger.
type Option func(*config)

// WithDebug lowers the level to debug and adds source locations.
func WithDebug() Option {
	return func(c *config) {
		c.debug = true
	}
}

// WithFormat selects "text" or "json" output.
func WithFormat(format string) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithWriter adds an extra sink, for example a log file.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// WithQuiet suppresses output to stderr.
func WithQuiet() Option {
	return func(c *config) {
		c.quiet = true
	}
}

// NewLogger builds a logger that fans records out to stderr and the
// optional writer.
func NewLogger(opts ...Option) Logger {
	cfg := &config{format: "text"}
	for _, opt := range opts {
		opt(cfg)
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.debug,
	}

	var handlers []slog.Handler
	if !cfg.quiet {
		handlers = append(handlers, newHandler(os.Stderr, cfg.format, handlerOpts))
	}
	if cfg.writer != nil {
		handlers = append(handlers, &lockedHandler{
			handler: newHandler(cfg.writer, cfg.format, handlerOpts),
			mu:      &sync.Mutex{},
		})
	}

	return &appLogger{logger: slog.New(slogmulti.Fanout(handlers...))}
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var _ slog.Handler = (*lockedHandler)(nil)

// lockedHandler serializes writes to a shared sink so that lines from
// loggers derived with With do not interleave.
type lockedHandler struct {
	handler slog.Handler
	mu      *sync.Mutex
}

func (h *lockedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *lockedHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handler.Handle(ctx, record)
}

func (h *lockedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lockedHandler{handler: h.handler.WithAttrs(attrs), mu: h.mu}
}

func (h *lockedHandler) WithGroup(name string) slog.Handler {
	return &lockedHandler{handler: h.handler.WithGroup(name), mu: h.mu}
}

func (a *appLogger) Debug(msg string, tags ...any) { a.logger.Debug(msg, tags...) }
func (a *appLogger) Info(msg string, tags ...any)  { a.logger.Info(msg, tags...) }
func (a *appLogger) Warn(msg string, tags ...any)  { a.logger.Warn(msg, tags...) }
func (a *appLogger) Error(msg string, tags ...any) { a.logger.Error(msg, tags...) }

func (a *appLogger) Debugf(format string, v ...any) { a.logger.Debug(fmt.Sprintf(format, v...)) }
func (a *appLogger) Infof(format string, v ...any)  { a.logger.Info(fmt.Sprintf(format, v...)) }
func (a *appLogger) Warnf(format string, v ...any)  { a.logger.Warn(fmt.Sprintf(format, v...)) }
func (a *appLogger) Errorf(format string, v ...any) { a.logger.Error(fmt.Sprintf(format, v...)) }

func (a *appLogger) With(attrs ...any) Logger {
	return &appLogger{logger: a.logger.With(attrs...)}
}

func (a *appLogger) Handler() slog.Handler {
	return a.logger.Handler()
}
