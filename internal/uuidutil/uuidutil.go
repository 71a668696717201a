// Package uuidutil normalizes uuid values so that equal identifiers compare equal
// regardless of case or storage encoding.
package uuidutil

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ParseString parses common UUID string formats and returns a normalized lower-case UUID.
func ParseString(raw string) (uuid.UUID, string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid UUID value")
	}
	return parsed, strings.ToLower(parsed.String()), nil
}

// ParseBytes parses RFC-order UUID bytes and returns a normalized lower-case UUID.
func ParseBytes(raw []byte) (uuid.UUID, string, error) {
	parsed, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid UUID bytes")
	}
	return parsed, strings.ToLower(parsed.String()), nil
}

// Normalize returns the canonical lower-case string of a uuid given as a string, 16 raw bytes
// or uuid.UUID. Values that are not uuids are reported as not ok.
func Normalize(value any) (string, bool) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), true
	case string:
		_, s, err := ParseString(v)
		return s, err == nil
	case []byte:
		if len(v) == 16 {
			_, s, err := ParseBytes(v)
			return s, err == nil
		}
		_, s, err := ParseString(string(v))
		return s, err == nil
	default:
		return "", false
	}
}
