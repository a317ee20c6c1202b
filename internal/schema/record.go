package schema

import (
	"strings"
	"time"

	"github.com/mschirtzinger/habitvault/internal/types"
)

// Header keys, in the order they are written.
const (
	KeyID          = "id"
	KeyName        = "name"
	KeyDescription = "description"
	KeyColor       = "color"
	KeyCreatedAt   = "createdAt"
	KeyArchived    = "archived"
)

// Record is one decoded note: the item and its log entries.
type Record struct {
	Item    types.Item
	Entries []types.Entry
}

// DecodeOptions supplies the defaults DecodeRecord fills in for absent fields.
type DecodeOptions struct {
	// DefaultColor is used when the note has no color. Empty means
	// types.DefaultColor.
	DefaultColor string

	// Now stamps createdAt when the note has none. Nil means time.Now.
	Now func() time.Time
}

func (o DecodeOptions) defaultColor() string {
	if o.DefaultColor == "" {
		return types.DefaultColor
	}
	return o.DefaultColor
}

func (o DecodeOptions) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// EncodeRecord renders the full note for item. Only entries belonging to the
// item are written.
func EncodeRecord(item types.Item, entries []types.Entry) string {
	var b strings.Builder

	b.WriteString(EncodeHeader([]Field{
		{Key: KeyID, Value: StringValue(item.ID)},
		{Key: KeyName, Value: StringValue(item.Name)},
		{Key: KeyDescription, Value: StringValue(item.Description)},
		{Key: KeyColor, Value: StringValue(item.Color)},
		{Key: KeyCreatedAt, Value: StringValue(item.CreatedAt)},
		{Key: KeyArchived, Value: BoolValue(item.Archived)},
	}))
	b.WriteString("\n")

	b.WriteString("# " + item.Name + "\n\n")
	if item.Description != "" {
		b.WriteString(item.Description + "\n\n")
	}

	b.WriteString(CompletionsHeading + "\n\n")
	b.WriteString(EncodeEntries(item.ID, entries))

	return b.String()
}

// DecodeRecord parses a whole note. fallbackName, normally the file's base
// name, is used when the header has no name. It returns ErrNoFrontmatter or
// ErrMissingID, both matching ErrFraming, when the note is not a record.
func DecodeRecord(text, fallbackName string, opts DecodeOptions) (*Record, error) {
	h, ok := DecodeHeader(text)
	if !ok {
		return nil, ErrNoFrontmatter
	}

	id := h.GetOr(KeyID, "")
	if id == "" {
		return nil, ErrMissingID
	}

	item := types.Item{
		ID:          id,
		Name:        h.GetOr(KeyName, fallbackName),
		Description: h.GetOr(KeyDescription, ""),
		Color:       h.GetOr(KeyColor, opts.defaultColor()),
		CreatedAt:   h.GetOr(KeyCreatedAt, ""),
	}
	if item.CreatedAt == "" {
		item.CreatedAt = types.FormatTimestamp(opts.now())
	}
	if v, ok := h[KeyArchived]; ok {
		item.Archived = v.IsTrue()
	}

	return &Record{
		Item:    item,
		Entries: DecodeEntries(text, id),
	}, nil
}
