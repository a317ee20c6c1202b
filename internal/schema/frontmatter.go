package schema

import (
	"strconv"
	"strings"
)

// Marker is the line that opens and closes the header block.
const Marker = "---"

// Kind identifies the decoded type of a header value.
type Kind int

const (
	// KindString is any value that is not a boolean literal.
	KindString Kind = iota
	// KindBool is a value written as true or false.
	KindBool
)

// Value is one decoded header value.
type Value struct {
	Kind Kind
	Str  string
	Bool bool
}

// StringValue wraps s as a string value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// BoolValue wraps b as a boolean value.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// String returns the literal form of the value as it appears in a header.
func (v Value) String() string {
	if v.Kind == KindBool {
		return strconv.FormatBool(v.Bool)
	}
	return v.Str
}

// IsTrue reports whether the value is the boolean true or the string "true".
func (v Value) IsTrue() bool {
	if v.Kind == KindBool {
		return v.Bool
	}
	return v.Str == "true"
}

// Field is one ordered key/value pair to encode.
type Field struct {
	Key   string
	Value Value
}

// Header is a decoded header block.
type Header map[string]Value

// Get returns the literal value for key and whether it was present.
func (h Header) Get(key string) (string, bool) {
	v, ok := h[key]
	if !ok {
		return "", false
	}
	return v.String(), true
}

// GetOr returns the literal value for key, or def when the key is absent or
// its value is empty.
func (h Header) GetOr(key, def string) string {
	if s, ok := h.Get(key); ok && s != "" {
		return s
	}
	return def
}

// EncodeHeader renders fields in order between two marker lines. Values are
// written literally; nothing is quoted or escaped.
func EncodeHeader(fields []Field) string {
	var b strings.Builder
	b.WriteString(Marker + "\n")
	for _, f := range fields {
		b.WriteString(f.Key + ": " + f.Value.String() + "\n")
	}
	b.WriteString(Marker + "\n")
	return b.String()
}

// DecodeHeader parses the header block at the start of text. It returns false
// when the first line is not a marker or no closing marker follows. Lines in
// between that are blank or lack a key: value shape are skipped.
func DecodeHeader(text string) (Header, bool) {
	lines, ok := splitHeader(text)
	if !ok {
		return nil, false
	}

	h := make(Header, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, raw, found := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			continue
		}
		h[key] = parseValue(strings.TrimSpace(raw))
	}
	return h, true
}

// splitHeader returns the raw lines between the opening and closing markers.
func splitHeader(text string) ([]string, bool) {
	lines := strings.Split(text, "\n")
	if !strings.HasPrefix(lines[0], Marker) || strings.TrimSpace(lines[0]) != Marker {
		return nil, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == Marker {
			return lines[1:i], true
		}
	}
	return nil, false
}

func parseValue(raw string) Value {
	switch {
	case raw == "" || strings.EqualFold(raw, "empty"):
		return StringValue("")
	case raw == "true":
		return BoolValue(true)
	case raw == "false":
		return BoolValue(false)
	default:
		return StringValue(raw)
	}
}
