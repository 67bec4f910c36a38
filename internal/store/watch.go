package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Change reports a collection document modified by something other than
// this store.
type Change struct {
	Resource Resource
	Path     string
	Op       fsnotify.Op
	At       time.Time
}

// Watcher observes the data directory for external edits of the collection
// documents. Writes made through the owning FileStore are not reported.
type Watcher struct {
	store   *FileStore
	watcher *fsnotify.Watcher
	changes chan Change

	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the store's data directory.
func NewWatcher(s *FileStore) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return &Watcher{
		store:   s,
		watcher: w,
		changes: make(chan Change, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. The directory is watched rather than the files
// because every write replaces the file through a rename.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.store.config.DataDir); err != nil {
		return fmt.Errorf("watching %s: %w", w.store.config.DataDir, err)
	}
	w.started.Store(true)
	go w.run(ctx)
	return nil
}

// Changes returns the channel of external changes. It is closed when the
// watcher stops.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
		if !w.started.Load() {
			close(w.changes)
			close(w.done)
		}
	})
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.changes)

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			change, ok := w.classify(event)
			if !ok {
				continue
			}
			select {
			case w.changes <- change:
			default:
				w.store.logger.Warn(ctx, "dropping store change notification, consumer too slow",
					zap.String("path", change.Path))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.logger.Warn(ctx, "store watcher error", zap.Error(err))
		}
	}
}

// classify maps a filesystem event to a Change, dropping events on other
// files, temporary files and the store's own writes.
func (w *Watcher) classify(event fsnotify.Event) (Change, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return Change{}, false
	}

	var res Resource
	switch filepath.Base(event.Name) {
	case w.store.config.DefinitionsFile:
		res = Definitions
	case w.store.config.ResponsesFile:
		res = Responses
	default:
		return Change{}, false
	}

	if !event.Has(fsnotify.Remove) {
		data, err := os.ReadFile(event.Name)
		if err == nil && w.store.wroteLast(res, data) {
			return Change{}, false
		}
	}

	return Change{Resource: res, Path: event.Name, Op: event.Op, At: time.Now()}, true
}
