package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"objectwatch/internal/logging"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the config file whenever it changes and passes every valid
// result to onChange. Invalid edits are logged and the previous config stays
// in effect. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, configPath, schemaPath string, debounce time.Duration, onChange func(*Config)) error {
	log := logging.FromContext(ctx)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	// The directory is watched so atomic saves (write temp, rename) are seen.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "err", err)
		case <-fire:
			fire = nil
			cfg, err := Load(configPath, schemaPath)
			if err != nil {
				log.Error("config reload rejected", "path", configPath, "err", err)
				continue
			}
			log.Info("config reloaded", "path", configPath)
			onChange(cfg)
		}
	}
}
