package library

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/errors"
)

// Watcher logs external additions and removals of song directories under
// the library root. Operators sometimes prune the library by hand; the
// watcher makes those changes visible in the server log instead of
// surfacing later as missing-artifact surprises.
type Watcher struct {
	lib     *Library
	watcher *fsnotify.Watcher
	log     *zap.SugaredLogger
	done    chan struct{}
}

// NewWatcher starts watching the library root.
func NewWatcher(lib *Library, log *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsw.Add(lib.Root()); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch library root %s", lib.Root())
	}

	w := &Watcher{
		lib:     lib,
		watcher: fsw,
		log:     log,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher.
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
			// Only top-level entries are song directories
			if filepath.Dir(event.Name) != w.lib.Root() {
				continue
			}
			songID := filepath.Base(event.Name)
			switch {
			case event.Op&fsnotify.Create != 0:
				w.log.Debugw("Library entry appeared", "song_id", songID)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.log.Warnw("Library entry removed outside the API", "song_id", songID)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnw("Library watcher error", "error", err)
		}
	}
}
