package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mapscene/animator/internal/loop"
)

// Watch reloads the palette library at path whenever it changes and posts
// the result to apply on the loop. It returns once the watcher is running;
// the watcher stops when ctx is done.
func Watch(ctx context.Context, path string, sched loop.Scheduler, logger *slog.Logger, apply func(*Library)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating palette watcher: %w", err)
	}
	// editors replace files by rename, so watch the directory
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				lib, err := LoadLibrary(path)
				if err != nil {
					logger.Warn("palette reload failed", "path", path, "error", err)
					continue
				}
				logger.Info("palettes reloaded", "path", path, "palettes", len(lib.Palettes), "cycles", len(lib.Tables))
				sched.Post(func() { apply(lib) })
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("palette watcher error", "error", err)
			}
		}
	}()
	return nil
}
