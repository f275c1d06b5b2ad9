package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// ReloadFunc receives the freshly loaded configuration after the config
// file changes on disk.
type ReloadFunc func(*Config)

// Watcher hot-reloads the configuration when the config file changes.
//
// Only a subset of settings is safe to change at runtime (logging level,
// retrieval limit); the ReloadFunc decides what to apply. Reload keeps
// the previous configuration when the new file fails validation.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	onReload ReloadFunc
	stop     chan struct{}
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, logger *zap.Logger, onReload ReloadFunc) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onReload == nil {
		return nil, errors.New("reload callback is required")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		path:     path,
		watcher:  fsw,
		logger:   logger,
		onReload: onReload,
		stop:     make(chan struct{}),
	}, nil
}

// Start begins watching for config file changes.
//
// The parent directory is watched rather than the file itself so that
// atomic saves (write to temp, rename over) keep being observed. Events
// for other files in the directory are ignored.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching config directory %s: %w", dir, err)
	}

	go w.processEvents(ctx)

	w.logger.Debug("config watcher started", zap.String("path", w.path))
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

// processEvents processes filesystem events and triggers reloads.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the config file and hands the result to the callback.
func (w *Watcher) reload() {
	cfg, err := LoadWithFile(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous configuration",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.logger.Info("config reloaded",
		zap.String("path", w.path),
		zap.String("logging_level", cfg.Logging.Level),
		zap.Int("retrieval_limit", cfg.Retrieval.Limit),
	)
	w.onReload(cfg)
}
