package config

import (
	"context"
	"fmt"
	"time"

	"github.com/deepnoodle-ai/cascade/slogger"
	"github.com/fsnotify/fsnotify"
)

const DefaultWatchDebounce = 500 * time.Millisecond

// WatchOptions configure config file watching.
type WatchOptions struct {
	// Paths are the files or directories to watch.
	Paths []string

	// Debounce suppresses repeated notifications for the same file within
	// the window (default 500ms). Editors often fire several events per
	// save.
	Debounce time.Duration

	Logger slogger.Logger
}

// Watch blocks watching the given paths and invokes onChange with the
// changed file's path whenever a config file is written or created. It
// returns when the context is canceled.
func Watch(ctx context.Context, opts WatchOptions, onChange func(path string)) error {
	if len(opts.Paths) == 0 {
		return fmt.Errorf("no paths to watch")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultWatchDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range opts.Paths {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	lastSeen := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isConfigFile(event.Name) {
				continue
			}
			now := time.Now()
			if last, seen := lastSeen[event.Name]; seen && now.Sub(last) < opts.Debounce {
				continue
			}
			lastSeen[event.Name] = now
			opts.Logger.Debug("config file changed", "path", event.Name, "op", event.Op.String())
			onChange(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("file watcher error", "error", err)
		}
	}
}
