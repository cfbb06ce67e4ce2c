package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"tabcomplete/logger"

	"github.com/fsnotify/fsnotify"
)

// watchSettle absorbs the burst of events editors emit when saving
// (truncate+write, or write-temp+rename).
const watchSettle = 100 * time.Millisecond

// Watch calls onChange after the file at path is written, created or
// replaced. The parent directory is watched so atomic-rename saves are seen.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	logger.Debug("watching settings file %s", path)

	var settle *time.Timer
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.AfterFunc(watchSettle, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			logger.Info("settings file changed: %s", path)
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watcher error: %v", err)
		}
	}
}
