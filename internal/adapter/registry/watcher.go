package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the registry file and calls notify after changes settle.
// It watches the containing directory rather than the file itself so that
// editors and atomic-rename writers that replace the inode are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	notify   func()
	log      *slog.Logger
}

// NewWatcher creates a watcher for the registry at path. notify is invoked
// from the watcher's goroutine once per settled burst of file events.
func NewWatcher(path string, debounce time.Duration, notify func(), log *slog.Logger) *Watcher {
	return &Watcher{path: path, debounce: debounce, notify: notify, log: log}
}

// Run watches until ctx is cancelled. Rapid successive events coalesce into
// a single notification after the debounce interval passes without further
// activity.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(w.path)

	w.log.Info("watching registry", "path", w.path, "debounce", w.debounce)

	var timer *time.Timer
	var settled <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				settled = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-settled:
			timer = nil
			settled = nil
			w.log.Debug("registry change settled")
			w.notify()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("registry watch error", "error", err)
		}
	}
}
