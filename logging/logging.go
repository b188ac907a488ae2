// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lixenwraith/thundagun/config"
)

const (
	// DefaultFile is used when a log directory is set without a file name
	DefaultFile = "thundagun.log"

	// DefaultMaxSize is the rotation threshold when none is configured
	DefaultMaxSize = 10 << 20
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseLevel maps a config level name to a slog level; empty is info
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// Setup builds the logger described by cfg
//   - Disable: output discarded
//   - File empty: coloured console output on console
//   - File set: text output appended to Dir/File, rotated at startup past MaxSize
//
// The returned closer releases the log file; it is safe to call on every path
func Setup(cfg config.Logging, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Disable {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), nopCloser{}, nil
	}
	if cfg.File == "" {
		if console == nil {
			console = os.Stderr
		}
		return slog.New(NewConsoleHandler(console, opts)), nopCloser{}, nil
	}

	f, err := OpenFile(cfg.Dir, cfg.File, cfg.MaxSize)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, opts)), f, nil
}

// OpenFile opens dir/name for appending, creating dir
// An existing file larger than maxSize is renamed with a timestamp suffix first
func OpenFile(dir, name string, maxSize int64) (*os.File, error) {
	if name == "" {
		name = DefaultFile
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, name)
	if info, err := os.Stat(path); err == nil && info.Size() > maxSize {
		if err := os.Rename(path, rotatedName(path, time.Now())); err != nil {
			return nil, fmt.Errorf("rotate log: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return f, nil
}

// rotatedName inserts a timestamp before the extension: app.log -> app-20060102-150405.log
func rotatedName(path string, now time.Time) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + now.Format("20060102-150405") + ext
}
