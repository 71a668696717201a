// Package coerce converts loosely typed wire values (driver output, JSON, YAML) into the
// canonical Go values the compiled functions compare and emit.
package coerce

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Float widens any numeric value to float64.
// Strings and byte slices are not numbers here; use Number for wire values.
func Float(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// Number converts numeric wire values, including numeric strings, to int64 when integral
// and float64 otherwise.
func Number(value any) (any, bool) {
	switch v := value.(type) {
	case string:
		return parseNumber(v)
	case []byte:
		return parseNumber(string(v))
	}
	f, ok := Float(value)
	if !ok {
		return nil, false
	}
	if i, ok := Int64(value); ok {
		return i, true
	}
	return f, true
}

func parseNumber(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

// Int64 converts integral values to int64. Floats must have no fractional part.
func Int64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float32:
		if float64(v) != math.Trunc(float64(v)) {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case []byte:
		parsed, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// BigInt renders an integral value as its decimal string. Values beyond int64 are accepted
// as strings or *big.Int.
func BigInt(value any) (string, bool) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return "", false
		}
		return v.String(), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case string:
		n, ok := new(big.Int).SetString(strings.TrimSpace(v), 10)
		if !ok {
			return "", false
		}
		return n.String(), true
	case []byte:
		return BigInt(string(v))
	}
	i, ok := Int64(value)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(i, 10), true
}

// Bool interprets wire truthiness: booleans, numbers (non-zero is true) and the strings
// "1", "0", "true", "false", "t", "f", "yes", "no".
func Bool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		return parseBool(v)
	case []byte:
		if len(v) == 1 && (v[0] == 0 || v[0] == 1) {
			// BIT(1) columns arrive as a single raw byte.
			return v[0] == 1, true
		}
		return parseBool(string(v))
	}
	if f, ok := Float(value); ok {
		return f != 0, true
	}
	return false, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true, true
	case "0", "false", "f", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// String converts text-like wire values to a string.
func String(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}
