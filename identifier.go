package bqpipeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrEmptyIdentifier is returned when an identifier value is empty.
	ErrEmptyIdentifier = errors.New("identifier is empty")

	// ErrIdentifierTooLong is returned when an identifier exceeds the maximum length.
	ErrIdentifierTooLong = errors.New("identifier is too long")

	// ErrIdentifierInvalidChars is returned when an identifier contains invalid characters.
	ErrIdentifierInvalidChars = errors.New("identifier contains invalid characters")
)

// maxIdentifierBytes is the maximum length for a BigQuery identifier (without backticks).
const maxIdentifierBytes = 1024

// filterIdentifierChars reports Unicode characters that do not fall in category
// - L (letter)
// - M (mark)
// - N (number),
// - Pc (connector, including underscore)
// - Pd (dash)
// - Zs (space).
// This follows BigQuery's table naming rules from:
// https://docs.cloud.google.com/bigquery/docs/tables#table_naming
// The dot is additionally allowed so that a resolved TableSpec
// ("project.dataset.table") passes as a single identifier path.
// It returns the distinct offending characters, empty when s is clean.
func filterIdentifierChars(s string) string {
	var invalid strings.Builder
	seen := make(map[rune]bool)
	for _, r := range s {
		if r == '.' ||
			unicode.IsLetter(r) ||
			unicode.IsMark(r) ||
			unicode.IsNumber(r) ||
			unicode.In(r, unicode.Pc, unicode.Pd, unicode.Zs) {
			continue
		}
		if !seen[r] {
			invalid.WriteRune(r)
			seen[r] = true
		}
	}
	return invalid.String()
}

// Ident formats v as a backtick-quoted BigQuery identifier for use in
// templated SQL. Unlike query parameters, identifiers cannot be bound
// server-side, so the value is validated against BigQuery's naming rules
// and rejected rather than escaped when it contains characters outside
// them (backticks included).
func Ident(v any) (string, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	default:
		s = fmt.Sprintf("%v", v)
	}
	if s == "" {
		return "", ErrEmptyIdentifier
	}
	if invalid := filterIdentifierChars(s); invalid != "" {
		return "", fmt.Errorf("%w: %q contains %q", ErrIdentifierInvalidChars, s, invalid)
	}
	if len(s) > maxIdentifierBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrIdentifierTooLong, len(s))
	}
	return "`" + s + "`", nil
}
