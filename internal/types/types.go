// Package types defines the core data types for habitvault: tracked items,
// their dated completion entries, and the in-memory collection that holds both.
package types

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DateLayout is the calendar date format used for entries (YYYY-MM-DD).
	DateLayout = "2006-01-02"

	// TimestampLayout is the ISO-8601 instant format written for CreatedAt.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

	// DefaultColor is used when neither the file nor the config supplies one.
	DefaultColor = "#4a9eff"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Item is a tracked habit. ID is assigned once and never changes; Name is
// mutable and doubles as the file-naming key.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	CreatedAt   string `json:"created_at"`
	Archived    bool   `json:"archived"`
}

// Entry is one dated observation for one item. At most one entry exists per
// (ItemID, Date) pair. An empty Note means no note.
type Entry struct {
	ItemID    string `json:"item_id"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Note      string `json:"note,omitempty"`
}

// NewID returns a fresh opaque item identifier.
func NewID() string {
	return uuid.NewString()
}

// FormatDate renders t as an entry date in t's location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatTimestamp renders t as a UTC ISO-8601 instant with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidColor reports whether s is a #RRGGBB token.
func ValidColor(s string) bool {
	return colorPattern.MatchString(s)
}

// Validate checks the fields a writer relies on.
func (it *Item) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("name is required")
	}
	// Header values are single-line and unescaped.
	if strings.ContainsAny(it.Name, "\r\n") {
		return fmt.Errorf("name must be a single line")
	}
	if strings.ContainsAny(it.Description, "\r\n") {
		return fmt.Errorf("description must be a single line")
	}
	// The description is written as a body paragraph above the log heading.
	if strings.HasPrefix(strings.TrimSpace(it.Description), "#") {
		return fmt.Errorf("description must not start with '#'")
	}
	if it.Color != "" && !ValidColor(it.Color) {
		return fmt.Errorf("color must be a #RRGGBB value (got %q)", it.Color)
	}
	return nil
}

// Collection is the full in-memory set of items and entries. The two slices
// are independent; the item ID is the join key.
type Collection struct {
	Items   []Item  `json:"items"`
	Entries []Entry `json:"entries"`
}

// NewCollection returns an empty collection with non-nil slices.
func NewCollection() *Collection {
	return &Collection{Items: []Item{}, Entries: []Entry{}}
}

// Clone returns a deep copy.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return NewCollection()
	}
	return &Collection{
		Items:   append([]Item{}, c.Items...),
		Entries: append([]Entry{}, c.Entries...),
	}
}

// Item returns a pointer to the item with the given ID, or nil.
func (c *Collection) Item(id string) *Item {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i]
		}
	}
	return nil
}

// FindByName returns the first item whose name matches case-insensitively.
func (c *Collection) FindByName(name string) *Item {
	for i := range c.Items {
		if strings.EqualFold(c.Items[i].Name, name) {
			return &c.Items[i]
		}
	}
	return nil
}

// ActiveItems returns the items that are not archived, in collection order.
func (c *Collection) ActiveItems() []Item {
	var out []Item
	for _, it := range c.Items {
		if !it.Archived {
			out = append(out, it)
		}
	}
	return out
}

// EntriesFor returns the entries of one item, most recent date first.
func (c *Collection) EntriesFor(itemID string) []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	SortEntries(out)
	return out
}

// Entry returns a pointer to the entry for (itemID, date), or nil.
func (c *Collection) Entry(itemID, date string) *Entry {
	for i := range c.Entries {
		if c.Entries[i].ItemID == itemID && c.Entries[i].Date == date {
			return &c.Entries[i]
		}
	}
	return nil
}

// IsCompleted reports whether itemID has a completed entry on date.
func (c *Collection) IsCompleted(itemID, date string) bool {
	e := c.Entry(itemID, date)
	return e != nil && e.Completed
}

// Toggle flips the completion of (itemID, date). A date with no entry gets a
// new completed entry. Returns the resulting completed state.
func (c *Collection) Toggle(itemID, date string) bool {
	if e := c.Entry(itemID, date); e != nil {
		e.Completed = !e.Completed
		return e.Completed
	}
	c.Entries = append(c.Entries, Entry{ItemID: itemID, Date: date, Completed: true})
	return true
}

// SetNote attaches note to the entry for (itemID, date), creating a
// not-completed entry when the date has none. Runs of whitespace, newlines
// included, collapse to one space so the note fits on its log line.
func (c *Collection) SetNote(itemID, date, note string) {
	note = strings.Join(strings.Fields(note), " ")
	if e := c.Entry(itemID, date); e != nil {
		e.Note = note
		return
	}
	c.Entries = append(c.Entries, Entry{ItemID: itemID, Date: date, Note: note})
}

// RemoveItem deletes the item and every entry that references it. Entries of
// other items are untouched. Returns false if the item was not present.
func (c *Collection) RemoveItem(itemID string) bool {
	idx := slices.IndexFunc(c.Items, func(it Item) bool { return it.ID == itemID })
	if idx < 0 {
		return false
	}
	c.Items = slices.Delete(c.Items, idx, idx+1)
	c.Entries = slices.DeleteFunc(c.Entries, func(e Entry) bool { return e.ItemID == itemID })
	return true
}

// SortEntries orders entries by date, most recent first. Dates are fixed
// width so a string compare is enough.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return strings.Compare(b.Date, a.Date)
	})
}
