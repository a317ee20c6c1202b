package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of vault change.
type EventOp int

const (
	// OpCreate indicates a new file was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted.
	OpDelete
	// OpRename indicates a file was moved away from OldPath.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is a change notification for a vault path.
type Event struct {
	Op EventOp
	// Path is the normalized vault path that changed. For renames reported
	// by the OS watcher it is empty; the destination arrives as its own
	// create event.
	Path string
	// OldPath is set for renames.
	OldPath string
}

// FileWatcher watches a vault directory tree for changes and reports them
// as vault-relative Events. Folders created after Start are watched too.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	root    string
}

// NewFileWatcher creates a new FileWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching root and every non-hidden folder beneath it.
func (fw *FileWatcher) Start(root string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve vault root %s: %w", root, err)
	}
	fw.root = abs

	if err := fw.addDirs(abs); err != nil {
		return fmt.Errorf("failed to watch vault %s: %w", abs, err)
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)

	// Closing the fsnotify watcher unblocks the event loop.
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	fw.wg.Wait()

	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel that emits vault Events.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan Event {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// addDirs watches dir and all of its non-hidden subfolders.
func (fw *FileWatcher) addDirs(dir string) error {
	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.watcher.Add(p)
	})
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// New folders need their own watch.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.addDirs(event.Name); err != nil {
						fw.sendError(err)
					}
				}
			}

			if ev, ok := fw.convertEvent(event); ok {
				select {
				case fw.events <- ev:
				case <-fw.done:
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.sendError(err)
		}
	}
}

func (fw *FileWatcher) sendError(err error) {
	select {
	case fw.errors <- err:
	case <-fw.done:
	}
}

// convertEvent converts an fsnotify event to an Event.
// Returns (Event{}, false) if the event should be ignored.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (Event, bool) {
	rel, ok := fw.relPath(event.Name)
	if !ok {
		return Event{}, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return Event{Op: OpCreate, Path: rel}, true
	case event.Has(fsnotify.Write):
		return Event{Op: OpModify, Path: rel}, true
	case event.Has(fsnotify.Remove):
		return Event{Op: OpDelete, Path: rel}, true
	case event.Has(fsnotify.Rename):
		return Event{Op: OpRename, OldPath: rel}, true
	default:
		// chmod
		return Event{}, false
	}
}

// relPath maps an absolute OS path to its vault path. Paths outside the
// root or inside hidden folders are rejected.
func (fw *FileWatcher) relPath(name string) (string, bool) {
	rel, err := filepath.Rel(fw.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	return NormalizePath(rel), true
}
