package schema

import (
	"regexp"
	"strings"

	"github.com/mschirtzinger/habitvault/internal/types"
)

const (
	// CompletionsHeading opens the completions log section.
	CompletionsHeading = "## Completions"

	// DoneMark and MissedMark are the status glyphs of a log line.
	DoneMark   = "✓"
	MissedMark = "✗"

	// EmptyLogPlaceholder stands in for an empty log. It carries no data and
	// is ignored when decoding.
	EmptyLogPlaceholder = "_No completions yet. Start tracking today!_"
)

var entryLine = regexp.MustCompile(`^- (\d{4}-\d{2}-\d{2}) ([✓✗])(.*)$`)

// EncodeEntries renders the log lines for itemID, most recent date first.
// Entries of other items are ignored. An empty log renders the placeholder.
func EncodeEntries(itemID string, entries []types.Entry) string {
	var own []types.Entry
	for _, e := range entries {
		if e.ItemID == itemID {
			own = append(own, e)
		}
	}
	if len(own) == 0 {
		return EmptyLogPlaceholder + "\n"
	}
	types.SortEntries(own)

	var b strings.Builder
	for _, e := range own {
		mark := MissedMark
		if e.Completed {
			mark = DoneMark
		}
		b.WriteString("- " + e.Date + " " + mark)
		if e.Note != "" {
			b.WriteString(" " + e.Note)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DecodeEntries scans text for the completions section and returns one entry
// per well-formed log line, stamped with itemID. The section ends at the next
// heading. Lines that do not match the log grammar are skipped. When a date
// appears twice, the first line wins.
func DecodeEntries(text, itemID string) []types.Entry {
	var (
		entries []types.Entry
		seen    = make(map[string]bool)
		inLog   bool
	)

	for _, line := range strings.Split(text, "\n") {
		if !inLog {
			if strings.HasPrefix(line, CompletionsHeading) {
				inLog = true
			}
			continue
		}

		if strings.HasPrefix(line, "#") {
			break
		}
		if !strings.HasPrefix(line, "- ") {
			continue
		}

		m := entryLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		date := m[1]
		if seen[date] {
			continue
		}
		seen[date] = true

		entries = append(entries, types.Entry{
			ItemID:    itemID,
			Date:      date,
			Completed: m[2] == DoneMark,
			Note:      strings.TrimSpace(m[3]),
		})
	}

	return entries
}
