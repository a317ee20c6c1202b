package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mschirtzinger/habitvault/internal/cache"
	"github.com/mschirtzinger/habitvault/internal/types"
)

// HistoryLimit is how many completions RenderHistory lists.
const HistoryLimit = 30

// CalendarWeeks is the number of week rows in the history calendar.
const CalendarWeeks = 7

// Options are the display toggles from the config.
type Options struct {
	ShowStreaks        bool
	ShowCompletionRate bool
	WeekStartsOnMonday bool
	Suggestions        []string
}

// RenderList renders today's checklist. Archived items are included only
// when showArchived is set.
func RenderList(c *types.Collection, today time.Time, opts Options, showArchived bool) string {
	var b strings.Builder
	date := types.FormatDate(today)

	b.WriteString(titleStyle.Render("Habits · "+today.Format("Monday, Jan 2")) + "\n")
	b.WriteString(mutedStyle.Render("      "+weekLabels(opts.WeekStartsOnMonday)) + "\n")

	items := c.ActiveItems()
	if showArchived {
		items = c.Items
	}
	if len(items) == 0 {
		b.WriteString("\n" + mutedStyle.Render("No habits yet.") + "\n")
		if len(opts.Suggestions) > 0 {
			b.WriteString("\nSuggestions:\n")
			for _, s := range opts.Suggestions {
				b.WriteString("  " + accentStyle.Render("+") + " " + s + "\n")
			}
		}
		b.WriteString("\n" + mutedStyle.Render(`Add one with: habits add "<name>"`) + "\n")
		return b.String()
	}

	for _, it := range items {
		box := boxUnchecked
		if c.IsCompleted(it.ID, date) {
			box = successStyle.Render(boxChecked)
		}

		line := fmt.Sprintf("%s %s %s", box, WeekStrip(c, it.ID, today, opts.WeekStartsOnMonday), nameStyle(it.Color).Render(it.Name))
		if it.Archived {
			line += " " + mutedStyle.Render("(archived)")
		}
		if opts.ShowStreaks {
			if streak := c.Streak(it.ID, today); streak > 0 {
				line += "  " + pendingStyle.Render("🔥 "+plural(streak, "day"))
			}
		}
		if opts.ShowCompletionRate {
			line += "  " + mutedStyle.Render(fmt.Sprintf("%d%%", c.StatsFor(it, today).CompletionRate))
		}
		b.WriteString(line + "\n")

		if it.Description != "" {
			b.WriteString("               " + mutedStyle.Render(it.Description) + "\n")
		}
	}

	if active := c.ActiveItems(); opts.ShowCompletionRate && len(active) > 0 {
		done := 0
		for _, it := range active {
			if c.IsCompleted(it.ID, date) {
				done++
			}
		}
		pct := done * 100 / len(active)
		b.WriteString("\n" + titleStyle.Render("Today's Progress") + "\n")
		b.WriteString(progressBar(done, len(active), 28) + "\n")
		b.WriteString(fmt.Sprintf("%d of %d habits completed (%d%%)\n", done, len(active), pct))
	}
	return b.String()
}

// WeekStrip renders one cell per day of the week containing today.
func WeekStrip(c *types.Collection, itemID string, today time.Time, mondayFirst bool) string {
	start := WeekStart(today, mondayFirst)
	cells := make([]string, 7)
	for i := range cells {
		cells[i] = dayCell(c, itemID, start.AddDate(0, 0, i), today)
	}
	return strings.Join(cells, "")
}

// WeekStart returns the first day of the week containing t.
func WeekStart(t time.Time, mondayFirst bool) time.Time {
	offset := int(t.Weekday())
	if mondayFirst {
		offset = (offset + 6) % 7
	}
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

func weekLabels(mondayFirst bool) string {
	if mondayFirst {
		return "MTWTFSS"
	}
	return "SMTWTFS"
}

func dayCell(c *types.Collection, itemID string, day, today time.Time) string {
	date := types.FormatDate(day)
	switch {
	case date > types.FormatDate(today):
		return mutedStyle.Render(cellFuture)
	case c.IsCompleted(itemID, date):
		return successStyle.Render(cellDone)
	default:
		return mutedStyle.Render(cellMissed)
	}
}

// RenderHistory renders one item's stats, recent completions and a
// calendar of the last CalendarWeeks weeks.
func RenderHistory(c *types.Collection, it types.Item, today time.Time, opts Options) string {
	var b strings.Builder

	b.WriteString(nameStyle(it.Color).Render("History: "+it.Name) + "\n")
	if it.Description != "" {
		b.WriteString(mutedStyle.Render(it.Description) + "\n")
	}
	if it.Archived {
		b.WriteString(mutedStyle.Render("(archived)") + "\n")
	}

	st := c.StatsFor(it, today)
	b.WriteString(panel([]string{
		fmt.Sprintf("🔥 Current Streak     %s", plural(st.Streak, "day")),
		fmt.Sprintf("✓  Total Completions  %d", st.TotalCompletions),
		fmt.Sprintf("📊 Completion Rate    %d%%", st.CompletionRate),
		fmt.Sprintf("📅 Days Tracked       %d", st.DaysTracked),
	}) + "\n")

	b.WriteString("\n" + titleStyle.Render("Recent Completions") + "\n")
	var done []types.Entry
	for _, e := range c.EntriesFor(it.ID) {
		if e.Completed {
			done = append(done, e)
		}
	}
	if len(done) == 0 {
		b.WriteString(mutedStyle.Render("No completions yet. Start tracking today!") + "\n")
	}
	for _, e := range done[:min(len(done), HistoryLimit)] {
		line := successStyle.Render("✓") + " " + LongDate(e.Date) + "  " + mutedStyle.Render(DaysAgo(e.Date, today))
		if e.Note != "" {
			line += "  " + accentStyle.Render(e.Note)
		}
		b.WriteString(line + "\n")
	}
	if len(done) > HistoryLimit {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Showing %d most recent completions of %d total", HistoryLimit, len(done))) + "\n")
	}

	b.WriteString("\n" + titleStyle.Render(fmt.Sprintf("Last %d Weeks", CalendarWeeks)) + "\n")
	b.WriteString(Calendar(c, it.ID, today, opts.WeekStartsOnMonday))
	return b.String()
}

// Calendar renders CalendarWeeks rows of seven day cells ending with the
// week that contains today.
func Calendar(c *types.Collection, itemID string, today time.Time, mondayFirst bool) string {
	labels := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	if mondayFirst {
		labels = append(labels[1:], labels[0])
	}

	var b strings.Builder
	b.WriteString(mutedStyle.Render(strings.Join(labels, " ")) + "\n")

	start := WeekStart(today, mondayFirst).AddDate(0, 0, -7*(CalendarWeeks-1))
	for w := range CalendarWeeks {
		cells := make([]string, 7)
		for d := range cells {
			cells[d] = " " + dayCell(c, itemID, start.AddDate(0, 0, w*7+d), today) + " "
		}
		b.WriteString(strings.Join(cells, " ") + "\n")
	}
	return b.String()
}

// LongDate formats a YYYY-MM-DD date like "Monday, January 1, 2024".
// Malformed dates are returned unchanged.
func LongDate(date string) string {
	t, err := time.Parse(types.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}

// DaysAgo describes how long before today date was.
func DaysAgo(date string, today time.Time) string {
	t, err := time.ParseInLocation(types.DateLayout, date, today.Location())
	if err != nil {
		return ""
	}
	y, m, d := today.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	days := int(midnight.Sub(t).Hours()+12) / 24

	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 14:
		return "1 week ago"
	case days < 30:
		return fmt.Sprintf("%d weeks ago", days/7)
	case days < 60:
		return "1 month ago"
	default:
		return fmt.Sprintf("%d months ago", days/30)
	}
}

// RenderStats renders cached aggregates as a table. since labels the
// windowed column.
func RenderStats(rows []cache.ItemStat, since string) string {
	if len(rows) == 0 {
		return mutedStyle.Render("No habits yet.") + "\n"
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("HABIT", "TOTAL", "SINCE "+since, "LAST DONE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return titleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, r := range rows {
		name := r.Name
		if r.Archived {
			name += " (archived)"
		}
		last := r.LastCompleted
		if last == "" {
			last = "-"
		}
		t.Row(name, fmt.Sprint(r.Total), fmt.Sprint(r.Since), last)
	}
	return t.Render() + "\n"
}

// RenderLog lists entries newest first as they are stored, completed or not.
func RenderLog(title string, entries []types.Entry, today time.Time) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n")
	if len(entries) == 0 {
		b.WriteString(mutedStyle.Render("No entries yet.") + "\n")
	}
	for _, e := range entries {
		mark := successStyle.Render("✓")
		if !e.Completed {
			mark = pendingStyle.Render("✗")
		}
		line := mark + " " + e.Date + "  " + mutedStyle.Render(DaysAgo(e.Date, today))
		if e.Note != "" {
			line += "  " + accentStyle.Render(e.Note)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
