package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads the catalog file whenever it changes on disk and hands the
// parsed result to onReload. A file that fails to parse is logged and the
// previous catalog stays in effect. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, logger zerolog.Logger, onReload func(*Catalog)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files via rename,
	// which drops a direct file watch.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of events from a single save.
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Str("path", path).Msg("catalog watcher error")
		case <-pending:
			pending = nil
			c, err := LoadFile(path)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("catalog reload failed, keeping previous catalog")
				continue
			}
			logger.Info().Str("path", path).Int("bosses", c.Len()).Msg("catalog reloaded")
			onReload(c)
		}
	}
}
