package fallback

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay lets a writer finish before the artifact is read.
var reloadDelay = 200 * time.Millisecond

// Watch reloads the index whenever the artifact is created, written or
// renamed into place, until ctx is done. The directory is watched rather
// than the file so atomic replacements are seen.
func (e *Engine) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating index watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			e.logger.Warnf("closing index watcher: %v", err)
		}
	}()

	target := filepath.Clean(e.cfg.IndexPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	e.logger.Infof("watching index artifact %s", target)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				e.logger.Debugf("index artifact changed (%s)", event.Op)
				timer.Reset(reloadDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warnf("index watcher error: %v", err)
		case <-timer.C:
			if err := e.Reload(); err != nil {
				e.logger.Warnf("reloading index: %v", err)
			}
		}
	}
}
