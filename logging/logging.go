// Package logging provides structured logging for gridfield tools.
//
// It is a thin layer over the standard library slog package: stderr text
// output by default (Unix CLI convention), optional JSON for machine
// consumption, and a level switch. Library packages in this module return
// errors rather than logging; the loggers here are for the command-line
// tools and diagnostic reports.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Level mirrors the slog levels the tools use.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slog() slog.Level {
	switch l {
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

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(name string) Level {
	switch name {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config controls logger construction.
type Config struct {
	Level  Level
	JSON   bool
	Output io.Writer // defaults to stderr
}

// New builds a logger from the config.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.slog()}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// Default returns an info-level text logger on stderr.
func Default() *slog.Logger {
	return New(Config{Level: LevelInfo})
}
