package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
)

// colorTextHandler is a slog.Handler that renders level-tagged, colorized
// single-line JSON, the same shape the teacher's colorTextHandler produces.
type colorTextHandler struct {
	w    io.Writer
	opts *slog.HandlerOptions
	mu   *sync.Mutex
	attrs []slog.Attr

	debugColor *color.Color
	infoColor  *color.Color
	warnColor  *color.Color
	errorColor *color.Color
}

func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *colorTextHandler {
	return &colorTextHandler{
		w:          w,
		opts:       opts,
		mu:         &sync.Mutex{},
		debugColor: color.New(color.FgCyan),
		infoColor:  color.New(color.FgGreen),
		warnColor:  color.New(color.FgYellow),
		errorColor: color.New(color.FgRed, color.Bold),
	}
}

func (h *colorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *colorTextHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	line := make(map[string]interface{}, 4+r.NumAttrs()+len(h.attrs))
	line["time"] = r.Time.Format(time.RFC3339)

	switch {
	case r.Level < slog.LevelInfo:
		line["level"] = h.debugColor.Sprint("DEBUG")
	case r.Level < slog.LevelWarn:
		line["level"] = h.infoColor.Sprint("INFO")
	case r.Level < slog.LevelError:
		line["level"] = h.warnColor.Sprint("WARN")
	default:
		line["level"] = h.errorColor.Sprint("ERROR")
	}
	line["msg"] = r.Message

	for _, a := range h.attrs {
		line[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		line[a.Key] = a.Value.Any()
		return true
	})

	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	_, err = h.w.Write(append(data, '\n'))
	return err
}

func (h *colorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *colorTextHandler) WithGroup(_ string) slog.Handler {
	return h
}

// newConsoleHandler builds the console tier's slog.Handler. Output always
// goes through go-colorable so color codes degrade gracefully on Windows
// terminals and when stdout is redirected.
func newConsoleHandler(cfg *Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level)}
	w := colorable.NewColorableStdout()
	if !cfg.Console.Color {
		return slog.NewJSONHandler(w, opts)
	}
	return newColorTextHandler(w, opts)
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
