// Package logger provides structured logging with a console tier (colored,
// via fatih/color over slog) and an optional rotating file tier (via
// lumberjack), adapted from the teacher's internal/logger package. The
// Elasticsearch tier is dropped; see DESIGN.md for why.
package logger

import "fmt"

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Component identifies which part of jetqueue produced a log line.
type Component string

const (
	ComponentQueue     Component = "queue"
	ComponentWorker    Component = "worker"
	ComponentScheduler Component = "scheduler"
	ComponentRedis     Component = "redis"
	ComponentClient    Component = "client"
)

// Config holds settings for both logging tiers.
type Config struct {
	Level Level

	Console ConsoleConfig
	File    FileConfig
}

// ConsoleConfig configures the always-on terminal tier.
type ConsoleConfig struct {
	Color bool
}

// FileConfig configures the optional rotating-file tier.
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig matches the teacher's tier defaults: console on with color,
// file off until a path is configured.
func DefaultConfig() *Config {
	return &Config{
		Level:   LevelInfo,
		Console: ConsoleConfig{Color: true},
		File: FileConfig{
			Enabled:    false,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// Validate checks tier-specific invariants.
func (c *Config) Validate() error {
	switch c.Level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("jetqueue: unknown log level %q", c.Level)
	}
	if c.File.Enabled && c.File.Path == "" {
		return fmt.Errorf("jetqueue: file logging enabled without a path")
	}
	return nil
}
