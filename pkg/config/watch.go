package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fitgraph/fitgraph/pkg/telemetry"
)

// DefaultDebounce is the quiet period Watch waits after the last change.
const DefaultDebounce = 500 * time.Millisecond

// Watch calls reload whenever one of the files in paths is written, created
// or replaced, coalescing bursts of events within debounce. It blocks until
// ctx is done and then returns nil. Reload errors are logged, not returned,
// so a broken edit does not end the watch.
//
// The parent directories are watched rather than the files themselves so
// that editors which save by rename are still observed.
func Watch(ctx context.Context, paths []string, debounce time.Duration, logger *telemetry.Logger, reload func() error) error {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	logger.Zerolog().Info().Int("files", len(targets)).Msg("watching model files")

	// Timers never deliver stale values after Stop or Reset, so the
	// channel needs no draining.
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			logger.Zerolog().Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("model file changed")

			timer.Reset(debounce)

		case <-timer.C:
			if err := reload(); err != nil {
				logger.Zerolog().Error().Err(err).Msg("reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Zerolog().Error().Err(err).Msg("watcher error")
		}
	}
}
