package personality

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/mnemo/pkg/logger"
)

// Watch reloads the profile at path whenever the file is written or
// replaced and passes each valid profile to onChange. Invalid edits are
// logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Profile), log *slog.Logger) error {
	if log == nil {
		log = logger.Nop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating personality watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files, so the directory is watched.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			p, err := Load(abs)
			if err != nil {
				log.Warn("ignoring personality change", "path", abs, "error", err)
				continue
			}
			log.Info("personality reloaded", "name", p.Name, "path", abs)
			onChange(p)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("personality watcher error", "error", err)
		}
	}
}
