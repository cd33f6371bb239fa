// Package watch follows the JSON data file for external edits (a sync
// client dropping a new copy, another device writing through a shared
// folder) and triggers a refresh from storage when it changes.
//
// The watcher observes the data file's parent directory rather than
// the file itself: atomic writers replace the file via rename, which
// would otherwise silently detach a file-level watch.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Refresher is the piece of the store the watcher drives.
type Refresher interface {
	RefreshFromStorage(ctx context.Context) error
}

// Config tunes a Watcher.
type Config struct {
	// Debounce is how long to wait after the last event before
	// refreshing. Sync clients often write in bursts.
	Debounce time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// DefaultConfig returns the standard settings.
func DefaultConfig() *Config {
	return &Config{
		Debounce: 500 * time.Millisecond,
		Logger:   log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher debounces file events on a single data file into refresh
// calls.
type Watcher struct {
	watcher  *fsnotify.Watcher
	store    Refresher
	path     string
	debounce time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a watcher for the data file at path, refreshing store
// when it changes. Start must be called before events flow.
func New(store Refresher, path string, config *Config) (*Watcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolve data file path: %w", err)
	}

	return &Watcher{
		watcher:  fsw,
		store:    store,
		path:     abs,
		debounce: config.Debounce,
		logger:   config.Logger,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the data file's directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}
	return nil
}

// loop coalesces bursts of events into a single refresh after the
// debounce window goes quiet.
func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			w.refresh()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watch error: %v", err)
		}
	}
}

// relevant reports whether the event touches the data file. Rename
// and create matter because atomic writers replace the file; chmod
// noise is dropped.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	abs, err := filepath.Abs(event.Name)
	if err != nil || abs != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.store.RefreshFromStorage(ctx); err != nil {
		// ErrLocked during an edit session is expected; anything else
		// is worth surfacing.
		w.logger.Printf("refresh skipped: %v", err)
		return
	}
	w.logger.Printf("data file changed, state refreshed")
}
