package schema

import (
	"errors"
	"fmt"
)

// Errors returned by DecodeRecord. Both framing failures match ErrFraming:
//
//	if errors.Is(err, schema.ErrFraming) {
//	    // skip the file
//	}
var (
	// ErrFraming is returned when a note cannot be read as a habit record.
	ErrFraming = errors.New("not a habit record")

	// ErrNoFrontmatter is returned when the header markers are missing or
	// the closing marker is never found.
	ErrNoFrontmatter = fmt.Errorf("%w: missing or unterminated frontmatter", ErrFraming)

	// ErrMissingID is returned when the header has no usable id field.
	ErrMissingID = fmt.Errorf("%w: no id in frontmatter", ErrFraming)
)
