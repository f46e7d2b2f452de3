package server

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a slog.Logger writing to stdout. Connection lifecycle
// lines are logged at debug level, so they only appear when Verbose is set.
func NewLogger(cfg Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
