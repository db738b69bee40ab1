package channels

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a registry whenever its rules file changes. Events are
// debounced so that editors writing a file in several steps trigger a
// single reload.
type Watcher struct {
	registry *Registry
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	pending  bool
	lastSeen time.Time

	lifecycle sync.Mutex
	started   bool
	stopped   bool
	stop      chan struct{}
	done      chan struct{}
	now       func() time.Time
}

// NewWatcher watches path for changes and reloads registry from it. The
// parent directory is watched rather than the file itself so that atomic
// renames (the usual way editors save) are seen.
func NewWatcher(registry *Registry, path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("channels: watcher needs a registry")
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		registry: registry,
		path:     abs,
		watcher:  fsw,
		debounce: debounce,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Start begins processing file events in a goroutine. It is a no-op once
// the watcher has been started or stopped.
func (w *Watcher) Start() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	go w.loop()
}

// Stop releases the file watch and, if Start ran, waits for the event loop
// to exit. It is safe to call without Start and more than once.
func (w *Watcher) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true

	close(w.stop)
	w.watcher.Close()
	if w.started {
		<-w.done
	}
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
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
			w.logger.Warn("Channel rules watcher error", slog.Any("error", err))

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if filepath.Clean(event.Name) != w.path {
		return
	}

	w.mu.Lock()
	w.pending = true
	w.lastSeen = w.now()
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.pending || w.now().Sub(w.lastSeen) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	if err := w.registry.ReloadFile(w.path); err != nil {
		w.logger.Error("Failed to reload channel rules, keeping previous rules",
			slog.String("path", w.path),
			slog.Any("error", err))
	}
}
