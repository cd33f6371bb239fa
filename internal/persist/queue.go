// Package persist provides the write-coalescing persistence queue and
// the snapshot sanitizers applied before a document leaves the
// process.
//
// The queue guarantees three things: at most one adapter write is in
// flight at any moment, the newest snapshot always eventually lands in
// storage even if many mutations arrive in one tick, and no write is
// issued for a version that has already been saved.
package persist

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/storage"
)

// Config holds configuration for the queue.
type Config struct {
	// SaveTimeout bounds each adapter write. A write that does not
	// complete in time fails instead of hanging the flush loop.
	SaveTimeout time.Duration

	// Debounce is how long the queue waits after the first pending
	// snapshot before writing, so a burst of mutations lands as one
	// save. Flush and Close skip the wait.
	Debounce time.Duration

	// Logger for queue activity.
	Logger *log.Logger

	// OnError, if set, is invoked (without the queue lock held) after
	// every failed save attempt.
	OnError func(error)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SaveTimeout: 30 * time.Second,
		Debounce:    250 * time.Millisecond,
		Logger:      log.New(os.Stderr, "[queue] ", log.LstdFlags),
	}
}

// Queue coalesces successive document snapshots into single adapter
// writes. Each Enqueue replaces the pending snapshot and bumps a
// monotonically increasing pending version; after a debounce window
// the flush loop writes the newest snapshot whenever the pending
// version is ahead of the last saved version. Flush forces an
// immediate write.
type Queue struct {
	adapter storage.Adapter
	config  *Config

	mu         sync.Mutex
	cond       *sync.Cond
	pending    *model.Document
	pendingVer uint64
	savedVer   uint64
	inFlight   bool
	closed     bool
	lastErr    error
	timer      *time.Timer
}

// New creates a queue writing through adapter.
func New(adapter storage.Adapter, config *Config) *Queue {
	if config == nil {
		config = DefaultConfig()
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = DefaultConfig().SaveTimeout
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	q := &Queue{adapter: adapter, config: config}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue replaces the pending snapshot with doc and arms the
// debounced flush. The caller must hand over ownership of doc; the
// queue never mutates it but may hold it until the write completes.
func (q *Queue) Enqueue(doc *model.Document) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = doc
	q.pendingVer++
	if q.inFlight || q.timer != nil {
		// A running loop picks up the new version on its next pass;
		// an armed timer will start one.
		return
	}
	q.timer = time.AfterFunc(q.config.Debounce, func() {
		q.mu.Lock()
		q.timer = nil
		q.startFlushLocked()
		q.mu.Unlock()
	})
}

// Flush blocks until every snapshot enqueued before the call has been
// saved, retrying a previously failed write first. It returns the save
// error if the write fails again, or the context error on expiry.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	target := q.pendingVer
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.startFlushLocked()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Taking the lock before broadcasting means the waiter is
			// parked inside Wait, so the wakeup cannot be lost.
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	defer q.mu.Unlock()
	for q.savedVer < target {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !q.inFlight {
			// The flush loop stopped without reaching the target: the
			// last write failed and its error is held for us.
			return q.lastErr
		}
		q.cond.Wait()
	}
	return nil
}

// Close flushes outstanding work and rejects further snapshots.
func (q *Queue) Close(ctx context.Context) error {
	err := q.Flush(ctx)
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return err
}

// Err returns the error of the most recent failed save, or nil after a
// successful one.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

// startFlushLocked launches the flush loop unless one is running or
// there is nothing new to write. Callers hold q.mu.
func (q *Queue) startFlushLocked() {
	if q.inFlight || q.closed || q.pendingVer == q.savedVer {
		return
	}
	q.inFlight = true
	go q.flushLoop()
}

// flushLoop writes pending snapshots until it catches up with the
// newest version or a write fails. On failure the unsent snapshot is
// retained and the loop parks; the next Enqueue or Flush retries.
func (q *Queue) flushLoop() {
	q.mu.Lock()
	for {
		if q.pendingVer == q.savedVer {
			q.inFlight = false
			q.cond.Broadcast()
			q.mu.Unlock()
			return
		}

		doc := q.pending
		ver := q.pendingVer
		q.pending = nil
		q.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), q.config.SaveTimeout)
		err := q.adapter.Save(ctx, doc)
		cancel()

		q.mu.Lock()
		if err != nil {
			q.lastErr = err
			// Keep the snapshot unless a newer one arrived meanwhile.
			if q.pending == nil {
				q.pending = doc
			}
			q.inFlight = false
			q.cond.Broadcast()
			onError := q.config.OnError
			q.mu.Unlock()
			q.config.Logger.Printf("save failed (version %d retained): %v", ver, err)
			if onError != nil {
				onError(err)
			}
			return
		}

		if ver > q.savedVer {
			q.savedVer = ver
		}
		q.lastErr = nil
		q.cond.Broadcast()
	}
}
