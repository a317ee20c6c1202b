// Package schema defines the Markdown file format habitvault stores items in.
//
// # Overview
//
// Every item lives in its own human-editable Markdown note. The note starts
// with a small key-value header (frontmatter) owned by habitvault, followed by
// free prose and a completions log:
//
//	---
//	id: 5f0c2f9e-8a4b-4c7e-9d55-2a1a3f6b7c10
//	name: Read
//	description: Twenty pages a day
//	color: #4a9eff
//	createdAt: 2024-01-01T08:00:00.000Z
//	archived: false
//	---
//
//	# Read
//
//	Twenty pages a day
//
//	## Completions
//
//	- 2024-01-02 ✓
//	- 2024-01-01 ✗ missed it
//
// # Codecs
//
// The format is handled by three layers:
//
//   - Header codec: EncodeHeader / DecodeHeader, the "---" framed key: value block
//   - Log codec: EncodeEntries / DecodeEntries, the "## Completions" list
//   - Record codec: EncodeRecord / DecodeRecord, a whole note for one item
//
// Reading a note:
//
//	rec, err := schema.DecodeRecord(content, "Read", schema.DecodeOptions{})
//	if errors.Is(err, schema.ErrFraming) {
//	    // not a habit note, skip it
//	}
//
// Writing a note:
//
//	content := schema.EncodeRecord(item, entries)
//
// # Tolerance
//
// Notes are expected to be edited by hand. Individual malformed header lines
// and malformed completion lines are skipped silently. Only a missing or
// unterminated header, or a header without an id, makes a note unreadable.
//
// The header is deliberately not YAML: values are written literally with no
// quoting or escaping, and only strings and booleans are recognized.
package schema
