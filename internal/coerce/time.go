package coerce

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical representation of date-only values.
const DateLayout = "2006-01-02"

// Layouts that carry their own offset. These win over any configured timezone.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999-07",
}

// Layouts without an offset, interpreted in the configured location.
var localLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	DateLayout,
}

// ParseTimezone turns a timezone convention into a location.
// Accepted: "" or "local", "Z" or "UTC", fixed offsets like "+02:00" / "-0530", or an IANA name.
func ParseTimezone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	switch strings.ToLower(tz) {
	case "", "local":
		return time.Local, nil
	case "z", "utc":
		return time.UTC, nil
	}
	if tz[0] == '+' || tz[0] == '-' {
		return parseOffset(tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}
	return loc, nil
}

func parseOffset(tz string) (*time.Location, error) {
	sign := 1
	if tz[0] == '-' {
		sign = -1
	}
	digits := strings.ReplaceAll(tz[1:], ":", "")
	if len(digits) != 2 && len(digits) != 4 {
		return nil, fmt.Errorf("invalid timezone offset %q", tz)
	}
	hours, err := strconv.Atoi(digits[:2])
	if err != nil || hours > 23 {
		return nil, fmt.Errorf("invalid timezone offset %q", tz)
	}
	minutes := 0
	if len(digits) == 4 {
		minutes, err = strconv.Atoi(digits[2:])
		if err != nil || minutes > 59 {
			return nil, fmt.Errorf("invalid timezone offset %q", tz)
		}
	}
	offset := sign * (hours*3600 + minutes*60)
	if offset == 0 {
		return time.UTC, nil
	}
	return time.FixedZone(tz, offset), nil
}

// DateTime parses a date-time wire value. An offset in the literal takes precedence;
// otherwise the value is read in loc. Integers are Unix milliseconds.
func DateTime(value any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		return parseDateTime(v, loc)
	case []byte:
		return parseDateTime(string(v), loc)
	}
	if ms, ok := Int64(value); ok {
		return time.UnixMilli(ms).In(loc), true
	}
	return time.Time{}, false
}

func parseDateTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Date renders a date-only value as YYYY-MM-DD.
// Times keep their own calendar day; strings must start with a date.
func Date(value any) (string, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.Format(DateLayout), true
	case *time.Time:
		if v == nil {
			return "", false
		}
		return v.Format(DateLayout), true
	case string:
		return parseDate(v)
	case []byte:
		return parseDate(string(v))
	default:
		return "", false
	}
}

func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return "", false
	}
	if _, err := time.Parse(DateLayout, s[:len(DateLayout)]); err != nil {
		return "", false
	}
	return s[:len(DateLayout)], true
}

// SameInstant reports whether two times denote the same millisecond.
func SameInstant(a, b time.Time) bool {
	return a.UnixMilli() == b.UnixMilli()
}
