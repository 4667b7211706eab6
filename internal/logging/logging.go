// Package logging builds the process logger and the crawl output log.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// Format is "text" or "json".
	Format string
	// File, if set, receives a copy of every record through a rotating sink.
	File string
	// MaxSizeMB, MaxBackups and MaxAgeDays control rotation of File.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to stderr and, when opts.File is set, to a
// rotating file. The returned closer releases the file sink.
func New(stderr io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	var out io.Writer = stderr
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		rotator, err := NewRotator(opts.File, opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(stderr, rotator)
		closer = rotator
	}

	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	default:
		closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	return slog.New(handler).With(slog.String("service", "sitecrawl")), closer, nil
}

// NewRotator opens a size-rotated log file, creating its directory.
func NewRotator(path string, maxSizeMB, maxBackups, maxAgeDays int) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
