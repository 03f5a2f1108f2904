// File: internal/logger/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package logger provides the process-wide leveled structured logger.
//
// Levels follow the DEBUG/INFO/WARN/ERROR convention used in configuration
// files. The level is held in a slog.LevelVar so it can change at runtime.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	level   = new(slog.LevelVar)
	current atomic.Pointer[slog.Logger]
)

func init() {
	current.Store(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// ParseLevel converts a configuration level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// SetLevel changes the minimum level of every logger derived from Default.
// Unknown names are ignored.
func SetLevel(name string) {
	if l, err := ParseLevel(name); err == nil {
		level.Set(l)
	}
}

// Level returns the current minimum level.
func Level() slog.Level {
	return level.Level()
}

// Setup installs the process logger. format is "text" or "json"; output is
// "stdout", "stderr" or a file path opened for append. The returned closer
// releases the file, if any.
func Setup(levelName, format, output string) (io.Closer, error) {
	l, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	w, closer, err := openOutput(output)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	default:
		_ = closer.Close()
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	level.Set(l)
	current.Store(slog.New(h))
	return closer, nil
}

// Default returns the process logger.
func Default() *slog.Logger {
	return current.Load()
}

// New returns a logger writing text to w that shares the process level.
// Intended for tests and embedding.
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nopCloser{}, nil
	case "stderr":
		return os.Stderr, nopCloser{}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %s: %w", output, err)
	}
	return f, f, nil
}
