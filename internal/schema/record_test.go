package schema

import (
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/habitvault/internal/types"
)

var fixedNow = func() time.Time {
	return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
}

func TestEncodeRecord_Golden(t *testing.T) {
	g := goldie.New(t)

	read := types.Item{
		ID:          "abc",
		Name:        "Read",
		Description: "Twenty pages a day",
		Color:       "#4a9eff",
		CreatedAt:   "2024-01-01T08:00:00.000Z",
	}
	entries := []types.Entry{
		{ItemID: "abc", Date: "2024-01-01", Completed: false, Note: "missed it"},
		{ItemID: "other", Date: "2024-01-03", Completed: true},
		{ItemID: "abc", Date: "2024-01-02", Completed: true},
	}
	g.Assert(t, "record_with_entries", []byte(EncodeRecord(read, entries)))

	meditate := types.Item{
		ID:        "xyz",
		Name:      "Meditate",
		Color:     "#112233",
		CreatedAt: "2024-02-01T00:00:00.000Z",
		Archived:  true,
	}
	g.Assert(t, "record_empty_log", []byte(EncodeRecord(meditate, nil)))
}

func TestDecodeRecord_Example(t *testing.T) {
	text := "---\nid: abc\nname: Read\narchived: false\n---\n\n# Read\n\n## Completions\n\n- 2024-01-02 ✓\n- 2024-01-01 ✗ missed it\n"

	rec, err := DecodeRecord(text, "ignored", DecodeOptions{Now: fixedNow})
	require.NoError(t, err)

	assert.Equal(t, types.Item{
		ID:        "abc",
		Name:      "Read",
		Color:     types.DefaultColor,
		CreatedAt: "2024-05-01T09:30:00.000Z",
		Archived:  false,
	}, rec.Item)
	assert.Equal(t, []types.Entry{
		{ItemID: "abc", Date: "2024-01-02", Completed: true},
		{ItemID: "abc", Date: "2024-01-01", Completed: false, Note: "missed it"},
	}, rec.Entries)

	// Re-encoding keeps the completions in descending date order.
	out := EncodeRecord(rec.Item, rec.Entries)
	assert.Contains(t, out, "## Completions\n\n- 2024-01-02 ✓\n- 2024-01-01 ✗ missed it\n")
}

func TestDecodeRecord_Defaults(t *testing.T) {
	text := "---\nid: abc\nname:\ncolor: empty\n---\n"

	rec, err := DecodeRecord(text, "Morning Run", DecodeOptions{DefaultColor: "#00ff00", Now: fixedNow})
	require.NoError(t, err)

	assert.Equal(t, "Morning Run", rec.Item.Name)
	assert.Equal(t, "", rec.Item.Description)
	assert.Equal(t, "#00ff00", rec.Item.Color)
	assert.Equal(t, "2024-05-01T09:30:00.000Z", rec.Item.CreatedAt)
	assert.False(t, rec.Item.Archived)
	assert.Empty(t, rec.Entries)
}

func TestDecodeRecord_Archived(t *testing.T) {
	tests := map[string]bool{
		"archived: true":  true,
		"archived: false": false,
		"archived: True":  false,
		"archived: yes":   false,
		"archived:":       false,
		"":                false,
	}
	for line, want := range tests {
		text := "---\nid: abc\n" + line + "\n---\n"
		rec, err := DecodeRecord(text, "x", DecodeOptions{})
		require.NoError(t, err, line)
		assert.Equal(t, want, rec.Item.Archived, line)
	}
}

func TestDecodeRecord_FramingErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{
			name:    "missing id with a well-formed body",
			text:    "---\nname: Read\ncolor: #4a9eff\n---\n\n# Read\n\n## Completions\n\n- 2024-01-02 ✓\n",
			wantErr: ErrMissingID,
		},
		{
			name:    "empty id",
			text:    "---\nid:\nname: Read\n---\n",
			wantErr: ErrMissingID,
		},
		{
			name:    "no closing marker",
			text:    "---\nid: abc\nname: Read\n\n## Completions\n\n- 2024-01-02 ✓\n",
			wantErr: ErrNoFrontmatter,
		},
		{
			name:    "plain note",
			text:    "# Shopping list\n\n- milk\n",
			wantErr: ErrNoFrontmatter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := DecodeRecord(tt.text, "x", DecodeOptions{})
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.Is(err, ErrFraming))
		})
	}
}

func TestRecord_GarbageInLogIsSkipped(t *testing.T) {
	text := "---\nid: abc\nname: Read\n---\n\n# Read\n\nSome prose I wrote by hand.\n\n## Completions\n\n" +
		"- yesterday ✓\n" +
		"- 2024-01-02 done\n" +
		"random text\n" +
		"- 2024-01-01 ✓ real one\n" +
		"\n## Reflections\n\n- 2023-12-31 ✓ not in the log\n"

	rec, err := DecodeRecord(text, "x", DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []types.Entry{
		{ItemID: "abc", Date: "2024-01-01", Completed: true, Note: "real one"},
	}, rec.Entries)
}

func TestRecord_RoundTrip(t *testing.T) {
	items := []types.Item{
		{ID: "1", Name: "Read", Description: "pages", Color: "#4a9eff", CreatedAt: "2024-01-01T00:00:00.000Z"},
		{ID: "2", Name: "Walk: outside", Color: "#ABCDEF", CreatedAt: "2024-01-01T00:00:00.000Z", Archived: true},
		{ID: "3", Name: "Drink water", Description: "8 glasses: no soda", Color: "#000000", CreatedAt: "2023-06-30T23:59:59.999Z"},
		{ID: "4", Name: "## Completions", Description: "keep ## Completions honest", Color: "#111111", CreatedAt: "2024-01-01T00:00:00.000Z"},
	}
	logs := [][]types.Entry{
		nil,
		{{Date: "2024-01-01", Completed: true}},
		{
			{Date: "2024-01-01", Completed: true, Note: "a note with ✓ inside"},
			{Date: "2024-03-15", Completed: false},
			{Date: "2023-12-31", Completed: true, Note: "nye"},
		},
		{{Date: "2024-02-02", Completed: true}},
	}

	for i, item := range items {
		t.Run(item.Name, func(t *testing.T) {
			var entries []types.Entry
			for _, e := range logs[i] {
				e.ItemID = item.ID
				entries = append(entries, e)
			}

			text := EncodeRecord(item, entries)
			rec, err := DecodeRecord(text, "fallback", DecodeOptions{})
			require.NoError(t, err)

			assert.Equal(t, item, rec.Item)

			want := append([]types.Entry(nil), entries...)
			types.SortEntries(want)
			assert.Equal(t, want, rec.Entries)

			// Decoding the re-encoded record yields the same record.
			again, err := DecodeRecord(EncodeRecord(rec.Item, rec.Entries), "fallback", DecodeOptions{})
			require.NoError(t, err)
			assert.Equal(t, rec, again)
		})
	}
}

func TestRecord_HeadingDescriptionRejected(t *testing.T) {
	item := types.Item{ID: "1", Name: "Read", Description: "## Completions matter", CreatedAt: "2024-01-01T00:00:00.000Z"}
	require.Error(t, item.Validate())

	// Such a paragraph would open the log early and hide the real one.
	text := EncodeRecord(item, []types.Entry{{ItemID: "1", Date: "2024-01-01", Completed: true}})
	rec, err := DecodeRecord(text, "Read", DecodeOptions{})
	require.NoError(t, err)
	assert.Empty(t, rec.Entries)
}
