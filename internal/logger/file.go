package logger

import (
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newFileHandler builds the rotating-file tier's slog.Handler, writing
// structured JSON lines through a lumberjack.Logger the way the teacher's
// FileLogger wraps its writes.
func newFileHandler(cfg *Config) (slog.Handler, *lumberjack.Logger) {
	rotator := &lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    cfg.File.MaxSizeMB,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAgeDays,
		Compress:   cfg.File.Compress,
	}
	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: slogLevel(cfg.Level)})
	return handler, rotator
}
