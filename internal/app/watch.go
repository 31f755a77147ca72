package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
)

// WatchDebounce is how long to wait for more changes before re-running.
const WatchDebounce = 100 * time.Millisecond

// watch runs the graph, then runs it again after every batch of changes
// to its files until ctx is done. Failed runs are logged, not returned, so
// the watcher survives a broken edit. The value cache stays warm between
// runs.
func (a *App) watch(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatches(watcher, a.config.GraphPath); err != nil {
		return err
	}

	rerun := func() {
		if _, err := a.RunOnce(ctx); err != nil {
			logger.Error("Run failed, waiting for changes.", "error", err)
		}
	}
	rerun()
	logger.Info("👀 Watching for changes.", "path", a.config.GraphPath)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Debug("Watcher stopped.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			logger.Debug("Change detected.", "file", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(WatchDebounce)
			} else {
				timer.Reset(WatchDebounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error.", "error", err)
		case <-fire:
			fire = nil
			logger.Info("🔁 Re-running after change.")
			rerun()
		}
	}
}

// addWatches watches path, or every directory below it.
func addWatches(w *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	if !info.IsDir() {
		// Editors replace files on save; watching the directory sees that.
		return w.Add(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".hcl" || ext == ".json" || ext == ""
}
