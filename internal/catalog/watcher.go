package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeCallback is called for every observed catalog change
type ChangeCallback func(path string, op string)

// Watcher monitors the catalog tree for material being added or removed
// while the daemon runs. Newly created directories are watched as they
// appear so the whole tree stays covered.
type Watcher struct {
	watcher  *fsnotify.Watcher
	base     string
	onChange ChangeCallback
	logger   zerolog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher over the catalog base path
func NewWatcher(base string, onChange ChangeCallback, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsw,
		base:     base,
		onChange: onChange,
		logger:   logger.With().Str("component", "catalog.watcher").Logger(),
		done:     make(chan struct{}),
	}

	if err := w.addTree(base); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Start begins processing filesystem events
func (w *Watcher) Start() {
	go w.loop()
	w.logger.Info().Str("base", w.base).Msg("Catalog watcher started")
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Catalog watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch new directory")
			}
		}
	}

	var op string
	switch {
	case event.Op&fsnotify.Create != 0:
		op = "create"
	case event.Op&fsnotify.Remove != 0:
		op = "remove"
	case event.Op&fsnotify.Rename != 0:
		op = "rename"
	case event.Op&fsnotify.Write != 0:
		op = "write"
	default:
		return
	}

	w.logger.Debug().Str("path", event.Name).Str("op", op).Msg("Catalog change observed")

	if w.onChange != nil {
		w.onChange(event.Name, op)
	}
}

// addTree watches a directory and all of its subdirectories
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable subtrees
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
