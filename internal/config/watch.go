package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor save produces.
const reloadDelay = 250 * time.Millisecond

// Watch reloads h's config file whenever it changes on disk until ctx is
// cancelled. The parent directory is watched so atomic rename-over saves
// are seen. A file that fails to load or validate is logged and ignored;
// the previous config stays in effect. onReload, if non-nil, runs after
// each successful update.
func Watch(ctx context.Context, h *Holder, logger *slog.Logger, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	defer watcher.Close()

	dir, name := filepath.Split(h.Path())
	if dir == "" {
		dir = "."
	}

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watching %s: %w", dir, err)
	}

	logger.Debug("watching config file", slog.String("path", h.Path()))

	timer := time.NewTimer(reloadDelay)
	timer.Stop()

	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(ev.Name) != name || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}

			timer.Reset(reloadDelay)

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", slog.String("error", werr.Error()))

		case <-timer.C:
			reload(h, logger, onReload)
		}
	}
}

func reload(h *Holder, logger *slog.Logger, onReload func(*Config)) {
	cfg, err := LoadOrDefault(h.Path())
	if err != nil {
		logger.Warn("config reload failed, keeping previous config",
			slog.String("path", h.Path()), slog.String("error", err.Error()))

		return
	}

	h.Update(cfg)
	logger.Info("config reloaded", slog.String("path", h.Path()))

	if onReload != nil {
		onReload(cfg)
	}
}
