package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 500 * time.Millisecond

// Watcher watches the config file and re-validates it on change.
type Watcher struct {
	fs         *fsnotify.Watcher
	current    *Config
	onReload   func(*Config, error)
	done       chan struct{}
	path       string
	schemaPath string
	mu         sync.RWMutex
	closeOnce  sync.Once
	reloads    atomic.Uint32
}

// NewWatcher loads the config once and starts watching it for changes.
// The parent directory is watched so that editors replacing the file
// through a rename are noticed too.
func NewWatcher(path string, schemaPath string, onReload func(*Config, error)) (*Watcher, error) {
	cfg, err := LoadAndValidate(path, schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		fs:         fsw,
		current:    cfg,
		onReload:   onReload,
		done:       make(chan struct{}),
		path:       filepath.Clean(path),
		schemaPath: schemaPath,
	}

	go w.watch()

	return w, nil
}

// watch dispatches debounced reloads until Close is called.
func (w *Watcher) watch() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}

			slog.Error("Watcher error", "error", err)
		}
	}
}

// reload reloads the config file.
func (w *Watcher) reload() {
	count := w.reloads.Add(1)
	slog.Info("Reloading config file", "path", w.path, "count", count)

	cfg, err := LoadAndValidate(w.path, w.schemaPath)
	if err != nil {
		slog.Error("Failed to reload config, keeping previous snapshot", "error", err)
		if w.onReload != nil {
			w.onReload(nil, err)
		}
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	slog.Info("Config reloaded successfully", "count", count)
	if w.onReload != nil {
		w.onReload(cfg, nil)
	}
}

// Snapshot returns the current config snapshot (thread-safe).
func (w *Watcher) Snapshot() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.current
}

// ReloadCount returns the number of times the config has been reloaded.
func (w *Watcher) ReloadCount() uint32 {
	return w.reloads.Load()
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}
