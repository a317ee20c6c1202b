package tracker

import "errors"

var (
	// ErrNotFound is returned when no item matches an ID or name.
	ErrNotFound = errors.New("habit not found")

	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
)
