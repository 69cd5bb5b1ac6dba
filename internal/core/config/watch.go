package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/colonyops/parley/internal/core/logging"
)

const debounceDelay = 100 * time.Millisecond

// Watch reloads the config file whenever it changes and passes each valid
// result to onChange. Invalid reloads are logged and skipped. The parent
// directory is watched so editors that replace the file by rename are
// handled. Watch blocks until ctx is done.
func Watch(ctx context.Context, configPath, dataDir string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(configPath)
	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger := logging.Component("config")
	reload := make(chan struct{}, 1)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

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

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("config watcher error")
		case <-reload:
			cfg, err := Load(configPath, dataDir)
			if err != nil {
				logger.Warn().Err(err).Str("path", configPath).Msg("ignoring invalid config reload")
				continue
			}
			logger.Info().Str("path", configPath).Msg("config reloaded")
			onChange(cfg)
		}
	}
}
