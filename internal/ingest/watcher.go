package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"coverdex/internal/catalog"
	"coverdex/internal/logging"
)

// Watcher registers covers as they appear in the covers directory.
type Watcher struct {
	store   *catalog.Store
	dir     string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	// settle is how long a file must be quiet after its last event
	// before registration, so half-copied images are not picked up.
	settle time.Duration
}

// NewWatcher starts watching the covers directory.
func NewWatcher(store *catalog.Store, coversDir string, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(coversDir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch covers directory: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		store:   store,
		dir:     coversDir,
		logger:  logger,
		watcher: fsWatcher,
		settle:  500 * time.Millisecond,
	}, nil
}

// Close releases the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run consumes filesystem events until the context is canceled. Write
// and create events for the same cover are debounced per path.
func (w *Watcher) Run(ctx context.Context) error {
	pending := make(map[string]*time.Timer)
	results := make(chan string)
	defer func() {
		for _, timer := range pending {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-results:
			delete(pending, path)
			id, err := register(ctx, w.store, path)
			if err != nil {
				w.logger.Error("failed to register cover",
					logging.String("path", path),
					logging.Error(err),
				)
				continue
			}
			if id != "" {
				w.logger.Info("cover ingested",
					logging.String(logging.FieldItemID, id),
					logging.String(logging.FieldEventType, "ingest_watch"),
				)
			}
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsCoverImage(event.Name) {
				continue
			}
			path := event.Name
			if timer, exists := pending[path]; exists {
				timer.Reset(w.settle)
				continue
			}
			pending[path] = time.AfterFunc(w.settle, func() {
				select {
				case results <- path:
				case <-ctx.Done():
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("covers watch error", logging.Error(err))
		}
	}
}
