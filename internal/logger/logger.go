package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the interface used throughout jetqueue for structured logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	WithComponent(component Component) Logger
	Close() error
}

// fanoutHandler dispatches every record to each of its backing handlers,
// the same multi-tier idea as the teacher's MultiLogger, expressed as a
// single slog.Handler instead of a hand-rolled dispatch method per level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &fanoutHandler{handlers: make([]slog.Handler, len(f.handlers))}
	for i, h := range f.handlers {
		next.handlers[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	next := &fanoutHandler{handlers: make([]slog.Handler, len(f.handlers))}
	for i, h := range f.handlers {
		next.handlers[i] = h.WithGroup(name)
	}
	return next
}

// MultiLogger implements Logger over a slog.Logger backed by the console
// (and optional file) tier handlers.
type MultiLogger struct {
	slog    *slog.Logger
	rotator *lumberjack.Logger
}

// New builds a MultiLogger from cfg.
func New(cfg *Config) (*MultiLogger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("jetqueue: invalid logger config: %w", err)
	}

	handlers := []slog.Handler{newConsoleHandler(cfg)}
	var rotator *lumberjack.Logger
	if cfg.File.Enabled {
		fh, r := newFileHandler(cfg)
		handlers = append(handlers, fh)
		rotator = r
	}

	return &MultiLogger{
		slog:    slog.New(&fanoutHandler{handlers: handlers}),
		rotator: rotator,
	}, nil
}

func (l *MultiLogger) Debug(msg string, args ...interface{}) { l.slog.Debug(msg, args...) }
func (l *MultiLogger) Info(msg string, args ...interface{})  { l.slog.Info(msg, args...) }
func (l *MultiLogger) Warn(msg string, args ...interface{})  { l.slog.Warn(msg, args...) }
func (l *MultiLogger) Error(msg string, args ...interface{}) { l.slog.Error(msg, args...) }

// WithComponent returns a logger tagging every subsequent record with
// component.
func (l *MultiLogger) WithComponent(component Component) Logger {
	return &MultiLogger{
		slog:    l.slog.With("component", string(component)),
		rotator: l.rotator,
	}
}

// Close flushes and closes the rotating file handle, if any.
func (l *MultiLogger) Close() error {
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}

// NoOpLogger discards every record. Useful as a safe zero value in tests.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{})        {}
func (NoOpLogger) Info(string, ...interface{})         {}
func (NoOpLogger) Warn(string, ...interface{})         {}
func (NoOpLogger) Error(string, ...interface{})        {}
func (n NoOpLogger) WithComponent(Component) Logger    { return n }
func (NoOpLogger) Close() error                        { return nil }

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NoOpLogger{}
)

// Default returns the process-wide logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault installs l as the process-wide logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

func Debug(msg string, args ...interface{}) { Default().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { Default().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { Default().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { Default().Error(msg, args...) }
