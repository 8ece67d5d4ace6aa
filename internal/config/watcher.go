package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceInterval = 200 * time.Millisecond

// Watcher keeps the latest valid config snapshot in memory, reloading it
// when the file changes on disk. The resolution loop reads the snapshot at
// the top of each iteration, so edits to the config file take effect on
// the next prompt without restarting the shell.
type Watcher struct {
	mu      sync.RWMutex
	current *Config

	path      string
	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	logger    *zap.Logger
}

// NewWatcher starts watching path. The initial snapshot must already be
// loaded by the caller; reload failures keep the previous snapshot.
func NewWatcher(path string, initial *Config, logger *zap.Logger) (*Watcher, error) {
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the parent directory: editors replace files on save, which
	// drops a watch registered on the file itself.
	if err := fsW.Add(filepath.Dir(path)); err != nil {
		fsW.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		current:   initial,
		path:      path,
		fsWatcher: fsW,
		done:      make(chan struct{}),
		logger:    logger,
	}
	go w.run()
	return w, nil
}

// Current returns the latest config snapshot.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) run() {
	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce bursts of write events from editors.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceInterval, w.reload)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous snapshot",
			zap.String("path", w.path), zap.Error(err))
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("reloaded config invalid, keeping previous snapshot",
			zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	w.logger.Info("config reloaded", zap.String("path", w.path))
}
