package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration when its file changes on disk.
// Editors often write config files as rename-over or truncate-write
// sequences, so events are debounced and the parent directory is
// watched rather than the file itself.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload func(Config, error)

	mu      sync.Mutex
	fw      *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher for the config file at path.
// onReload is called with the result of re-loading after each change.
func NewWatcher(path string, onReload func(Config, error)) *Watcher {
	return &Watcher{
		path:     path,
		debounce: 200 * time.Millisecond,
		onReload: onReload,
	}
}

// Start begins watching. A second Start without Stop is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}

	w.fw = fw
	w.done = make(chan struct{})
	w.running = true

	go w.loop(fw, w.done)
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.done)
	w.fw.Close()
	w.running = false
}

// loop consumes filesystem events, debouncing bursts into one reload.
func (w *Watcher) loop(fw *fsnotify.Watcher, done chan struct{}) {
	var timer *time.Timer
	var timerC <-chan time.Time

	target := filepath.Clean(w.path)

	for {
		select {
		case <-done:
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			cfg, err := Load(w.path)
			if w.onReload != nil {
				w.onReload(cfg, err)
			}

		case _, ok := <-fw.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; keep going.
		}
	}
}
