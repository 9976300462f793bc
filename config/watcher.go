package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openkaraoke/studio/errors"
	"github.com/openkaraoke/studio/logger"
)

// ReloadCallback is called with the freshly loaded config after the file
// on disk changes.
type ReloadCallback func(*Config) error

// Watcher watches a config file for changes and triggers reload callbacks.
// Editors replace files with write+rename, so both Write and Create events
// count as changes; a debounce collapses the burst into one reload.
type Watcher struct {
	configPath     string
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	mu             sync.RWMutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	done           chan struct{}
}

// NewWatcher creates a config file watcher for path.
func NewWatcher(configPath string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fsw.Add(configPath); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch config file %s", configPath)
	}

	w := &Watcher{
		configPath:     configPath,
		watcher:        fsw,
		debouncePeriod: 250 * time.Millisecond,
		done:           make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// OnReload registers a callback invoked after each successful reload.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.reload)
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFromFile(w.configPath)
	if err != nil {
		logger.Warnw("Config reload failed, keeping previous config",
			"path", w.configPath,
			"error", err,
		)
		return
	}

	logger.Infow("Config reloaded", "path", w.configPath)

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			logger.Warnw("Config reload callback failed", "error", err)
		}
	}
}
