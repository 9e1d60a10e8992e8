package main

import (
	"log/slog"
	"os"
)

// levelFromName maps a flag value onto a slog level. Unknown names fall
// back to info; validateFlags rejects them before this runs.
func levelFromName(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// setupLogger builds the process logger. It writes to stderr because
// stdout carries the resolved document.
func setupLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFromName(level),
		AddSource: level == "debug",
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
	)
}
