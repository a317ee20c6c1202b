package types

import (
	"math"
	"time"
)

// MaxStreakDays bounds how far back Streak looks.
const MaxStreakDays = 365

// Stats summarizes one item's history as of a given day.
type Stats struct {
	Streak           int `json:"streak"`
	TotalCompletions int `json:"total_completions"`
	DaysTracked      int `json:"days_tracked"`
	CompletionRate   int `json:"completion_rate"` // percent, rounded
}

// Streak counts consecutive completed days going back from today. If today
// is not completed the streak is 0.
func (c *Collection) Streak(itemID string, today time.Time) int {
	streak := 0
	for i := 0; i < MaxStreakDays; i++ {
		day := FormatDate(today.AddDate(0, 0, -i))
		if !c.IsCompleted(itemID, day) {
			break
		}
		streak++
	}
	return streak
}

// TotalCompletions counts completed entries for itemID.
func (c *Collection) TotalCompletions(itemID string) int {
	n := 0
	for _, e := range c.Entries {
		if e.ItemID == itemID && e.Completed {
			n++
		}
	}
	return n
}

// DaysTracked is the number of calendar days from the item's creation to
// today, inclusive. Unparseable or future timestamps count as one day.
func DaysTracked(it Item, today time.Time) int {
	created, err := time.Parse(time.RFC3339, it.CreatedAt)
	if err != nil {
		return 1
	}
	days := int(math.Floor(today.Sub(created).Hours()/24)) + 1
	if days < 1 {
		return 1
	}
	return days
}

// StatsFor computes Stats for the item as of today.
func (c *Collection) StatsFor(it Item, today time.Time) Stats {
	total := c.TotalCompletions(it.ID)
	days := DaysTracked(it, today)
	return Stats{
		Streak:           c.Streak(it.ID, today),
		TotalCompletions: total,
		DaysTracked:      days,
		CompletionRate:   int(math.Round(float64(total) / float64(days) * 100)),
	}
}
