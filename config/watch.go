package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle coalesces the burst of events editors emit for one save
const settle = 50 * time.Millisecond

// Watcher reloads a config file when it changes on disk
// Invalid contents are logged and ignored; the last good config stays active
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	onChange func(*Config)
	log      *slog.Logger
}

// NewWatcher starts watching path's directory; renames and atomic replaces are followed
func NewWatcher(path string, onChange func(*Config), log *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{path: abs, fs: fw, onChange: onChange, log: log}, nil
}

// Run delivers reloads until ctx ends, then closes the watcher
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(settle)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", "err", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload rejected", "path", w.path, "err", err)
		return
	}
	w.log.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Watch is NewWatcher followed by Run
func Watch(ctx context.Context, path string, onChange func(*Config), log *slog.Logger) error {
	w, err := NewWatcher(path, onChange, log)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
