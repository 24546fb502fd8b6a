package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/kyleking/gh-actionstatus/internal/logging"
)

// Watch calls onChange whenever the store file is rewritten by someone else.
// Writes made through this Store are ignored. Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	logger := logging.New("store")

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: Save replaces the file by rename.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)

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

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			data, err := os.ReadFile(s.path)
			if err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to read changed store", "path", s.path, "error", err)
				continue
			}

			if s.wroteLast(data) {
				continue
			}

			logger.Debug("store changed on disk", "path", s.path, "op", event.Op.String())
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("store watcher error", "error", err)
		}
	}
}
