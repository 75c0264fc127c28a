package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the catalog file and returns a channel
// of raw filesystem events. This is the out-of-process fallback named in
// §4.7: a process that never called a broadcaster subscribe() can still
// react to writes performed by another process sharing this catalog, since
// every committed write touches the file's mtime (see Touch).
//
// The returned channel is closed when ctx is canceled or the watcher errors
// unrecoverably; Watch never blocks a storage write, it only observes.
func Watch(ctx context.Context, path string, logger *slog.Logger) (<-chan struct{}, error) {
	if path == "" || path == ":memory:" {
		ch := make(chan struct{})
		close(ch)
		return ch, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch catalog file: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					select {
					case out <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("catalog watcher error", "error", err)
			}
		}
	}()

	return out, nil
}
