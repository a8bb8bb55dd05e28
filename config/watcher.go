package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
)

// DefaultDebounce is how long the watcher waits after the last change before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk.
// The parent directory is watched so that editors that replace the file on save are handled.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	onReload func(*Config, error)
}

// NewWatcher creates a Watcher for path. onReload receives every reload result, including
// decode errors, so that the caller can keep the last good configuration.
//
// Parameters:
//   - path: the config file to watch
//   - onReload: called from the Run goroutine after each change
//
// Returns:
//   - *Watcher: the watcher
//   - error: error if the path cannot be expanded or watched
func NewWatcher(path string, onReload func(*Config, error)) (*Watcher, error) {
	if onReload == nil {
		panic("config: NewWatcher requires a reload callback")
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("config: expand %q: %w", path, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %q: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		watcher:  fw,
		onReload: onReload,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run dispatches reloads until ctx is done, then closes the underlying watcher.
//
// Parameters:
//   - ctx: stops the watcher when done
//
// Returns:
//   - error: nil when stopped through ctx
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[Config] watcher error: %v", err)
		case <-timer.C:
			w.onReload(Load(w.path))
		}
	}
}
