// Package daemon provides the background auto-sync loop: a periodic push
// of pending writes to the remote store, with a debounced early push when
// local writes happen.
//
// Failures follow the retry-by-polling model: an interval's failed pass is
// logged and dropped, and the pending queue carries the work to the next
// interval. The daemon never retries with backoff on its own.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rollbook/rollbook/internal/record"
	"github.com/rollbook/rollbook/internal/store"
	"github.com/rollbook/rollbook/internal/sync"
)

// Config holds daemon configuration.
type Config struct {
	// Interval is how often a push pass runs regardless of activity.
	Interval time.Duration

	// DebounceInterval is how long after the last local write to wait
	// before pushing early. Batches bursts of writes into one pass.
	DebounceInterval time.Duration

	// WatchDir, when set, is a directory watched with fsnotify for blob
	// writes by other processes (the file storage backend's data dir).
	// External writes trigger a push like local ones do.
	WatchDir string

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:         5 * time.Minute,
		DebounceInterval: 2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon drives periodic and write-triggered sync passes.
type Daemon struct {
	syncer sync.Syncer
	store  *store.Store
	config *Config

	watcher      *fsnotify.Watcher
	unsubscribes []func()

	mu        gosync.Mutex
	dirtyAt   time.Time
	hasChange bool

	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// New creates a Daemon. The store is subscribed for change notifications;
// the syncer performs the actual passes.
func New(syncer sync.Syncer, st *store.Store, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 2 * time.Second
	}

	return &Daemon{
		syncer: syncer,
		store:  st,
		config: config,
	}, nil
}

// Start begins the daemon's operation. It subscribes to every synced
// collection, optionally starts the directory watcher, and runs until ctx
// is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)
	d.config.Logger.Println("Starting auto-sync daemon")

	for _, collection := range record.SyncedCollections {
		unsub := d.store.Subscribe(collection, d.markChanged)
		d.unsubscribes = append(d.unsubscribes, unsub)
	}

	if d.config.WatchDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := watcher.Add(d.config.WatchDir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", d.config.WatchDir, err)
		}
		d.watcher = watcher
		d.config.Logger.Printf("Watching: %s", d.config.WatchDir)

		d.wg.Add(1)
		go d.watchFileEvents(ctx)
	}

	d.wg.Add(2)
	go d.intervalLoop(ctx)
	go d.debounceLoop(ctx)

	<-ctx.Done()
	return d.stop()
}

// Stop cancels the daemon and waits for its goroutines to finish.
func (d *Daemon) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

func (d *Daemon) stop() error {
	d.config.Logger.Println("Stopping daemon")

	for _, unsub := range d.unsubscribes {
		unsub()
	}
	d.unsubscribes = nil

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// markChanged records that local state changed, arming the debounce timer.
func (d *Daemon) markChanged() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirtyAt = time.Now()
	d.hasChange = true
}

// watchFileEvents feeds external blob writes into the change queue.
func (d *Daemon) watchFileEvents(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			d.config.Logger.Printf("File event: %s %s", event.Op, event.Name)
			d.markChanged()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// intervalLoop runs a push pass on every tick.
func (d *Daemon) intervalLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runPass(ctx, "interval")
		}
	}
}

// debounceLoop pushes early once writes have been quiet for the debounce
// interval.
func (d *Daemon) debounceLoop(ctx context.Context) {
	defer d.wg.Done()

	// Poll at a fraction of the debounce interval so a quiet period is
	// noticed promptly without busy-waiting.
	poll := d.config.DebounceInterval / 4
	if poll < 50*time.Millisecond {
		poll = 50 * time.Millisecond
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			due := d.hasChange && time.Since(d.dirtyAt) >= d.config.DebounceInterval
			if due {
				d.hasChange = false
			}
			d.mu.Unlock()

			if due {
				d.runPass(ctx, "change")
			}
		}
	}
}

// runPass performs one push pass. Failures are logged and dropped; the
// pending queue carries unfinished work to the next trigger.
func (d *Daemon) runPass(ctx context.Context, trigger string) {
	start := time.Now()
	if err := d.syncer.SyncAll(ctx); err != nil {
		d.config.Logger.Printf("Sync pass (%s) failed: %v", trigger, err)
		return
	}
	d.config.Logger.Printf("Sync pass (%s) complete in %v", trigger, time.Since(start).Round(time.Millisecond))
}
