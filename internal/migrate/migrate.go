// Package migrate moves habit data in and out of a vault as one JSON
// document: a flat list of habits and a flat list of completions joined by
// habit ID.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mschirtzinger/habitvault/internal/store"
	"github.com/mschirtzinger/habitvault/internal/types"
)

// Data is the interchange document.
type Data struct {
	Habits      []Habit      `json:"habits"`
	Completions []Completion `json:"completions"`
}

// Habit is one habit in a Data document.
type Habit struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	CreatedAt   string `json:"createdAt"`
	Archived    bool   `json:"archived"`
}

// Completion is one dated entry in a Data document.
type Completion struct {
	HabitID   string `json:"habitId"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Note      string `json:"note,omitempty"`
}

// Options controls Import.
type Options struct {
	DryRun    bool // Count what would be written without writing
	Overwrite bool // Replace records whose ID or file is already taken

	// Now stamps habits without createdAt. Nil means time.Now.
	Now func() time.Time
}

// Result contains statistics about an import.
type Result struct {
	Imported int
	Skipped  int // already present and Overwrite not set
	Entries  int // entries written with the imported habits
	Dropped  int // completions with a bad date, a duplicate date or no habit
	Errors   []string
}

// FromCollection converts c into a Data document.
func FromCollection(c *types.Collection) *Data {
	d := &Data{
		Habits:      make([]Habit, 0, len(c.Items)),
		Completions: make([]Completion, 0, len(c.Entries)),
	}
	for _, it := range c.Items {
		d.Habits = append(d.Habits, Habit{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Color:       it.Color,
			CreatedAt:   it.CreatedAt,
			Archived:    it.Archived,
		})
	}
	for _, e := range c.Entries {
		d.Completions = append(d.Completions, Completion{
			HabitID:   e.ItemID,
			Date:      e.Date,
			Completed: e.Completed,
			Note:      e.Note,
		})
	}
	return d
}

// Collection converts d into a collection and reports how many completions
// were dropped. Completions without a habit id cannot be joined and are
// dropped. The first completion for a habit and date wins; notes are folded
// onto one line.
func (d *Data) Collection() (*types.Collection, int) {
	c := types.NewCollection()
	known := make(map[string]bool, len(d.Habits))
	for _, h := range d.Habits {
		c.Items = append(c.Items, types.Item{
			ID:          h.ID,
			Name:        strings.TrimSpace(h.Name),
			Description: strings.TrimSpace(h.Description),
			Color:       h.Color,
			CreatedAt:   h.CreatedAt,
			Archived:    h.Archived,
		})
		known[h.ID] = true
	}

	dropped := 0
	for _, cp := range d.Completions {
		if cp.HabitID == "" || !known[cp.HabitID] || !types.ValidDate(cp.Date) || c.Entry(cp.HabitID, cp.Date) != nil {
			dropped++
			continue
		}
		c.Entries = append(c.Entries, types.Entry{
			ItemID:    cp.HabitID,
			Date:      cp.Date,
			Completed: cp.Completed,
			Note:      strings.Join(strings.Fields(cp.Note), " "),
		})
	}
	return c, dropped
}

// ReadData decodes a Data document.
func ReadData(r io.Reader) (*Data, error) {
	var d Data
	dec := json.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("invalid habit data: %w", err)
	}
	return &d, nil
}

// ReadFile decodes the Data document at path.
func ReadFile(path string) (*Data, error) {
	// #nosec G304 - controlled path from CLI
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadData(f)
}

// WriteData encodes d with indentation.
func WriteData(w io.Writer, d *Data) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to encode habit data: %w", err)
	}
	return nil
}

// Import writes every habit in d as a record through s. A habit whose ID is
// already in the vault, or whose file name is taken, is skipped unless
// opts.Overwrite is set. Per-habit failures are collected in Result.Errors
// and do not stop the import.
func Import(ctx context.Context, s *store.Store, d *Data, opts Options) (*Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	existing, err := s.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vault: %w", err)
	}
	taken := make(map[string]bool, len(existing.Items)*2)
	for _, it := range existing.Items {
		taken["id:"+it.ID] = true
		taken["path:"+s.PathFor(it.Name)] = true
	}

	c, dropped := d.Collection()
	result := &Result{Dropped: dropped}

	for _, it := range c.Items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		entries := c.EntriesFor(it.ID)
		if it.ID == "" {
			it.ID = types.NewID()
		}
		if it.CreatedAt == "" {
			it.CreatedAt = types.FormatTimestamp(now())
		}
		if err := it.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("habit %q: %v", it.Name, err))
			continue
		}

		path := s.PathFor(it.Name)
		if !opts.Overwrite && (taken["id:"+it.ID] || taken["path:"+path]) {
			result.Skipped++
			continue
		}

		if !opts.DryRun {
			if err := s.Save(ctx, it, entries); err != nil {
				if errors.Is(err, context.Canceled) {
					return result, err
				}
				result.Errors = append(result.Errors, fmt.Sprintf("habit %q: %v", it.Name, err))
				continue
			}
		}
		taken["id:"+it.ID] = true
		taken["path:"+path] = true
		result.Imported++
		result.Entries += len(entries)
	}

	return result, nil
}
