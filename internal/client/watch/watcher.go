// Package watch reloads the workspace list when another process rewrites
// the workspace file.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 300 * time.Millisecond

// Watcher watches a single file for changes.
type Watcher struct {
	path     string
	onChange func(ctx context.Context) error
	debounce time.Duration
	logger   logging.Logger
}

// New creates a watcher that calls onChange after writes to path settle.
func New(path string, onChange func(ctx context.Context) error, logger logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger.With("module", "watch"),
	}
}

// WithDebounce sets the debounce duration.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until ctx is cancelled. The directory is watched rather than
// the file so that atomic replacements are seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	filename := filepath.Base(w.path)
	w.logger.Debug(ctx, "watching workspace file", "path", w.path)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := func() {
		if err := w.onChange(ctx); err != nil {
			w.logger.Warn(ctx, "reload after external change failed", "error", err)
			return
		}
		w.logger.Info(ctx, "workspace file changed externally, reloaded")
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
			mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watcher error", "error", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
