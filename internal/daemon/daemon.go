package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mschirtzinger/habitvault/internal/types"
	"github.com/mschirtzinger/habitvault/internal/vault"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long the vault must be quiet before a reload.
	// Events inside the window coalesce into one reload. Zero reloads
	// synchronously inside HandleEvent.
	DebounceInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// minTick is the floor for the debounce poll interval.
const minTick = time.Millisecond

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 100 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Reloader rebuilds the in-memory collection from the vault and returns the
// new snapshot. A failed reload must leave the previous collection in place.
type Reloader interface {
	Reload(ctx context.Context) (*types.Collection, error)
}

// Listener is called with the new snapshot after each successful reload.
type Listener func(*types.Collection)

// Daemon reloads the collection whenever a record file under the root folder
// changes, and notifies listeners afterwards.
type Daemon struct {
	model  Reloader
	root   string
	config *Config

	listenersMu sync.Mutex
	listeners   []Listener

	// reloadMu keeps reloads from overlapping.
	reloadMu sync.Mutex

	changeQueueMu sync.Mutex
	pending       bool
	lastChange    time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon that reloads model for changes under root.
func New(model Reloader, root string, config *Config) (*Daemon, error) {
	if model == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval < 0 {
		return nil, fmt.Errorf("debounce interval cannot be negative")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		model:  model,
		root:   vault.NormalizePath(root),
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// OnReload registers a listener for successful reloads.
func (d *Daemon) OnReload(l Listener) {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	d.listeners = append(d.listeners, l)
}

// InScope reports whether ev can affect the collection. Creates, modifies
// and deletes count when they touch a note under the root; renames count
// when either side is under the root, so moves into and out of the folder
// are seen.
func (d *Daemon) InScope(ev vault.Event) bool {
	if ev.Op == vault.OpRename {
		return (ev.Path != "" && vault.InFolder(ev.Path, d.root)) ||
			(ev.OldPath != "" && vault.InFolder(ev.OldPath, d.root))
	}
	return strings.HasSuffix(ev.Path, vault.NoteExt) && vault.InFolder(ev.Path, d.root)
}

// HandleEvent is the external change hook. Out-of-scope events are ignored.
// With a zero DebounceInterval the reload runs before HandleEvent returns;
// otherwise the event is queued and the reload happens once the vault has
// been quiet for the interval (see Start).
func (d *Daemon) HandleEvent(ev vault.Event) {
	if !d.InScope(ev) {
		return
	}
	d.config.Logger.Printf("File event: %s %s", ev.Op, describe(ev))

	if d.config.DebounceInterval == 0 {
		_ = d.Reload(d.ctx)
		return
	}
	d.queueChange()
}

func describe(ev vault.Event) string {
	switch {
	case ev.Op != vault.OpRename:
		return ev.Path
	case ev.Path == "":
		return ev.OldPath
	default:
		return ev.OldPath + " -> " + ev.Path
	}
}

// Reload performs an unconditional full reload and notifies listeners. On
// failure the error is logged and returned, listeners are not called and
// the model keeps its previous collection.
func (d *Daemon) Reload(ctx context.Context) error {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	c, err := d.model.Reload(ctx)
	if err != nil {
		d.config.Logger.Printf("Error reloading: %v", err)
		return fmt.Errorf("reload failed: %w", err)
	}
	d.config.Logger.Printf("Reloaded %d items", len(c.Items))

	d.listenersMu.Lock()
	listeners := append([]Listener(nil), d.listeners...)
	d.listenersMu.Unlock()

	for _, l := range listeners {
		l(c)
	}
	return nil
}

// Start consumes events until ctx is cancelled or Stop is called, feeding
// each one through HandleEvent. Errors from errs are logged. Either channel
// may be nil.
//
// This blocks until shutdown.
func (d *Daemon) Start(ctx context.Context, events <-chan vault.Event, errs <-chan error) error {
	d.config.Logger.Printf("Starting daemon for %s", d.root)

	d.wg.Add(2)
	go d.watchEvents(events, errs)
	go d.processChangeQueue()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()
	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

func (d *Daemon) watchEvents(events <-chan vault.Event, errs <-chan error) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.HandleEvent(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange marks a reload as pending and restarts the quiet window.
func (d *Daemon) queueChange() {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.pending = true
	d.lastChange = time.Now()
}

// processChangeQueue reloads once the queue has been quiet long enough.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	if d.config.DebounceInterval == 0 {
		return
	}

	ticker := time.NewTicker(max(d.config.DebounceInterval/2, minTick))
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if d.takePending() {
				_ = d.Reload(d.ctx)
			}
		}
	}
}

// takePending reports whether a debounced reload is due and clears the flag.
func (d *Daemon) takePending() bool {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	if !d.pending || time.Since(d.lastChange) < d.config.DebounceInterval {
		return false
	}
	d.pending = false
	return true
}
