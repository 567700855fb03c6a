package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events a single save produces.
const reloadDelay = 100 * time.Millisecond

// Watch reloads path whenever it changes and hands the result to onChange.
// It blocks until ctx is cancelled.
//
// A file that fails to load or validate is logged and skipped; onChange only
// ever sees valid configurations.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}
	slog.Info("config: watching for changes", "path", path)

	pending := time.NewTimer(reloadDelay)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic saves show up as Create (rename over the old file).
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending.Reset(reloadDelay)
			}

		case <-pending.C:
			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", path,
				"broadcast_interval", cfg.Server.Broadcast.Interval,
				"log_level", cfg.Server.LogLevel,
			)
			onChange(cfg)

			// A rename replaces the inode; watch the new one.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
