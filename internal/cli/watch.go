package cli

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups bursts of filesystem events (editors often write a
// file in several steps) into one reload.
const DefaultDebounce = 150 * time.Millisecond

// Watcher re-runs a callback whenever the watched path changes.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Run calls fn once, then again after every change under w.Path, until ctx
// is done. Errors from fn are logged and do not stop the loop, so a broken
// document can be fixed in place.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	match, err := w.register(watcher)
	if err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		logger.Error("Render failed", "path", w.Path, "err", err)
	}

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !match(evt) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() && !hidden(evt.Name) {
					_ = watcher.Add(evt.Name)
				}
			}
			logger.Debug("Change detected", "file", evt.Name, "op", evt.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			trigger = timer.C

		case <-trigger:
			trigger = nil
			logger.Info("Reloading", "path", w.Path)
			if err := fn(ctx); err != nil {
				logger.Error("Render failed", "path", w.Path, "err", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "err", err)
		}
	}
}

// register adds the watches for w.Path and returns the event filter.
// A single file is watched through its directory, since many editors replace
// files by renaming a temporary one over them.
func (w *Watcher) register(watcher *fsnotify.Watcher) (func(fsnotify.Event) bool, error) {
	info, err := os.Stat(w.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", w.Path, err)
	}

	if !info.IsDir() {
		target := filepath.Clean(w.Path)
		if err := watcher.Add(filepath.Dir(target)); err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", w.Path, err)
		}
		return func(evt fsnotify.Event) bool {
			return filepath.Clean(evt.Name) == target && !evt.Has(fsnotify.Chmod)
		}, nil
	}

	err = filepath.WalkDir(w.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.Path && hidden(path) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", w.Path, err)
	}
	return func(evt fsnotify.Event) bool {
		if evt.Has(fsnotify.Chmod) || hidden(evt.Name) {
			return false
		}
		switch strings.ToLower(filepath.Ext(evt.Name)) {
		case ".md", ".json", ".yaml", ".yml", "":
			return true
		}
		return false
	}, nil
}

func hidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
