package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"tracklist/logger"
)

// settleDelay is how long a file must stay untouched before it is re-read.
// Editors often write a file in several steps.
const settleDelay = 100 * time.Millisecond

// Watch re-reads the .env file at path whenever it changes and passes the
// parsed key/values to onChange. The parent directory is watched so that
// editors which replace the file on save are still noticed. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, onChange func(values map[string]string)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	checkTicker := time.NewTicker(settleDelay / 2)
	defer checkTicker.Stop()

	var pendingSince time.Time
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
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pendingSince = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", logger.ErrorField(err))

		case <-checkTicker.C:
			if pendingSince.IsZero() || time.Since(pendingSince) < settleDelay {
				continue
			}
			pendingSince = time.Time{}

			values, err := godotenv.Read(abs)
			if err != nil {
				logger.Warn("config reload failed", logger.String("path", abs), logger.ErrorField(err))
				continue
			}
			logger.Info("config file changed", logger.String("path", abs), logger.Int("keys", len(values)))
			onChange(values)
		}
	}
}
