package tables

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/cclastrib/backend/internal/domain/fiscal"
)

// Watcher reloads the table snapshot when a CSV under the data
// directory changes. File events are debounced so an editor or a
// deploy touching several files triggers a single reload.
type Watcher struct {
	provider fiscal.Provider
	dir      string
	debounce time.Duration
	logger   *zap.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher starts watching the directory. Close releases the
// underlying notifier.
func NewWatcher(provider fiscal.Provider, dir string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		provider: provider,
		dir:      dir,
		debounce: debounce,
		logger:   logger.Named("tables.watcher"),
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("table file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()),
			)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-fire:
			timer = nil
			fire = nil
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := w.provider.Reload(ctx); err != nil {
				w.logger.Error("automatic reload failed, keeping previous snapshot", zap.Error(err))
			}
			cancel()
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(strings.ToLower(event.Name), ".csv") {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Rename) || event.Op.Has(fsnotify.Remove)
}
