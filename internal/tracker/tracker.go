// Package tracker owns the live habit collection and the mutations on it.
//
// Each mutation runs on a copy of the collection, persists the touched
// record through the store, and only then swaps the copy in. A failed write
// leaves memory as it was. All methods are safe for concurrent use; they
// serialize on one mutex so a watcher-driven reload never interleaves with
// a save.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mschirtzinger/habitvault/internal/store"
	"github.com/mschirtzinger/habitvault/internal/types"
)

// ChangeKind identifies what a Change did.
type ChangeKind int

const (
	// ChangeAdded indicates a new item was created
	ChangeAdded ChangeKind = iota
	// ChangeUpdated indicates name, description or color changed
	ChangeUpdated
	// ChangeArchived indicates the archived flag was set or cleared
	ChangeArchived
	// ChangeDeleted indicates an item and its entries were removed
	ChangeDeleted
	// ChangeToggled indicates an entry's completion was flipped
	ChangeToggled
	// ChangeNoted indicates an entry's note was set
	ChangeNoted
)

// String returns a human-readable representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeArchived:
		return "archived"
	case ChangeDeleted:
		return "deleted"
	case ChangeToggled:
		return "toggled"
	case ChangeNoted:
		return "noted"
	default:
		return "unknown"
	}
}

// Change describes one successful mutation. Date and Entry are set for
// toggles and notes; Entry is the entry as saved.
type Change struct {
	Kind  ChangeKind
	Item  types.Item
	Date  string
	Entry types.Entry
}

// Options configures a Tracker.
type Options struct {
	// DefaultColor is given to new items.
	DefaultColor string

	// Now is the clock for creation timestamps.
	Now func() time.Time
}

// Tracker holds the current collection.
type Tracker struct {
	store *store.Store
	color string
	now   func() time.Time

	mu   sync.Mutex
	coll *types.Collection

	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// New creates a Tracker backed by s. The collection starts empty; call Load.
func New(s *store.Store, opts Options) *Tracker {
	color := opts.DefaultColor
	if color == "" {
		color = types.DefaultColor
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store: s,
		color: color,
		now:   now,
		coll:  types.NewCollection(),
		subs:  make(map[int]func(Change)),
	}
}

// Load reads every record from the store.
func (t *Tracker) Load(ctx context.Context) error {
	_, err := t.Reload(ctx)
	return err
}

// Reload replaces the collection wholesale with a fresh load and returns a
// snapshot of it. On error the previous collection is kept.
func (t *Tracker) Reload(ctx context.Context) (*types.Collection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	t.coll = c
	return c.Clone(), nil
}

// Snapshot returns a deep copy of the current collection.
func (t *Tracker) Snapshot() *types.Collection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.coll.Clone()
}

// Find looks an item up by exact ID, then by case-insensitive name.
func (t *Tracker) Find(nameOrID string) (types.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	it, err := t.find(t.coll, nameOrID)
	if err != nil {
		return types.Item{}, err
	}
	return *it, nil
}

func (t *Tracker) find(c *types.Collection, nameOrID string) (*types.Item, error) {
	if it := c.Item(nameOrID); it != nil {
		return it, nil
	}
	if it := c.FindByName(strings.TrimSpace(nameOrID)); it != nil {
		return it, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, nameOrID)
}

// Add creates a new item and saves its record.
func (t *Tracker) Add(ctx context.Context, name, description string) (types.Item, error) {
	item := types.Item{
		ID:          types.NewID(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Color:       t.color,
		CreatedAt:   types.FormatTimestamp(t.now()),
	}
	if err := item.Validate(); err != nil {
		return types.Item{}, err
	}

	err := t.mutate(ctx, func(c *types.Collection) (*types.Item, error) {
		c.Items = append(c.Items, item)
		return &c.Items[len(c.Items)-1], nil
	})
	if err != nil {
		return types.Item{}, err
	}
	t.notify(Change{Kind: ChangeAdded, Item: item})
	return item, nil
}

// Update changes an item's name, description and color. An empty name or
// color keeps the current value; the description is replaced as given, so an
// empty one clears it. When the new name maps to a different file, the file
// is renamed before it is rewritten.
func (t *Tracker) Update(ctx context.Context, id, name, description, color string) (types.Item, error) {
	var updated types.Item
	err := t.mutate(ctx, func(c *types.Collection) (*types.Item, error) {
		it := c.Item(id)
		if it == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		next := *it
		if name = strings.TrimSpace(name); name != "" {
			next.Name = name
		}
		next.Description = strings.TrimSpace(description)
		if color != "" {
			next.Color = color
		}
		if next.Color == "" {
			next.Color = t.color
		}
		if err := next.Validate(); err != nil {
			return nil, err
		}
		if next.Name != it.Name {
			if err := t.store.Rename(ctx, it.Name, next.Name); err != nil {
				return nil, err
			}
		}
		*it = next
		updated = next
		return it, nil
	})
	if err != nil {
		return types.Item{}, err
	}
	t.notify(Change{Kind: ChangeUpdated, Item: updated})
	return updated, nil
}

// SetArchived archives or restores an item.
func (t *Tracker) SetArchived(ctx context.Context, id string, archived bool) (types.Item, error) {
	var updated types.Item
	err := t.mutate(ctx, func(c *types.Collection) (*types.Item, error) {
		it := c.Item(id)
		if it == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		it.Archived = archived
		updated = *it
		return it, nil
	})
	if err != nil {
		return types.Item{}, err
	}
	t.notify(Change{Kind: ChangeArchived, Item: updated})
	return updated, nil
}

// Delete removes an item, its record file, and all of its entries.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	t.mu.Lock()

	it := t.coll.Item(id)
	if it == nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	item := *it

	if err := t.store.Delete(ctx, item); err != nil {
		t.mu.Unlock()
		return err
	}
	next := t.coll.Clone()
	next.RemoveItem(id)
	t.coll = next
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeDeleted, Item: item})
	return nil
}

// Toggle flips the completion of an item on date and returns the new state.
func (t *Tracker) Toggle(ctx context.Context, id, date string) (bool, error) {
	if !types.ValidDate(date) {
		return false, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	var (
		item  types.Item
		entry types.Entry
	)
	err := t.mutate(ctx, func(c *types.Collection) (*types.Item, error) {
		it := c.Item(id)
		if it == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		c.Toggle(id, date)
		item, entry = *it, *c.Entry(id, date)
		return it, nil
	})
	if err != nil {
		return false, err
	}
	t.notify(Change{Kind: ChangeToggled, Item: item, Date: date, Entry: entry})
	return entry.Completed, nil
}

// SetNote attaches a note to an item's entry on date. A date without an
// entry gets a not-completed one carrying the note.
func (t *Tracker) SetNote(ctx context.Context, id, date, note string) error {
	if !types.ValidDate(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	var (
		item  types.Item
		entry types.Entry
	)
	err := t.mutate(ctx, func(c *types.Collection) (*types.Item, error) {
		it := c.Item(id)
		if it == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		c.SetNote(id, date, note)
		item, entry = *it, *c.Entry(id, date)
		return it, nil
	})
	if err != nil {
		return err
	}
	t.notify(Change{Kind: ChangeNoted, Item: item, Date: date, Entry: entry})
	return nil
}

// Subscribe registers fn for every successful mutation. The returned func
// removes the subscription.
func (t *Tracker) Subscribe(fn func(Change)) func() {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()

	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn

	return func() {
		t.subsMu.Lock()
		defer t.subsMu.Unlock()
		delete(t.subs, id)
	}
}

func (t *Tracker) notify(ch Change) {
	t.subsMu.Lock()
	fns := make([]func(Change), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.subsMu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}

// mutate applies fn to a copy of the collection, saves the item fn returns,
// and commits the copy if the save succeeds.
func (t *Tracker) mutate(ctx context.Context, fn func(*types.Collection) (*types.Item, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.coll.Clone()
	it, err := fn(next)
	if err != nil {
		return err
	}
	if err := t.store.Save(ctx, *it, next.EntriesFor(it.ID)); err != nil {
		return err
	}
	t.coll = next
	return nil
}
