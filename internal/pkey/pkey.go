// Package pkey represents primary key values and serializes them to stable strings.
// Composite keys keep their parts in primary key declaration order.
package pkey

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"entitymeta/internal/coerce"
)

// Key is an ordered composite primary key.
type Key []any

// String serializes the key as a canonical JSON array. Equal part values always produce
// the same string, whatever their Go integer width.
func (k Key) String() string {
	return Serialize(k)
}

// Serialize renders a scalar or composite key as a stable string.
func Serialize(value any) string {
	data, err := json.Marshal(Canonical(value))
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

// Canonical normalizes a key value: integers widen to int64, integral floats become int64,
// bytes become base64, times become RFC 3339 UTC with nanoseconds, uuids become lower-case strings.
func Canonical(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case Key:
		out := make([]any, len(v))
		for i, part := range v {
			out[i] = Canonical(part)
		}
		return out
	case []any:
		return Canonical(Key(v))
	case string, bool:
		return v
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return v.String()
	}
	if i, ok := coerce.Int64(value); ok {
		return i
	}
	// Unsigned values above the int64 range keep full precision as decimal strings.
	switch v := value.(type) {
	case uint64:
		return strconv.FormatUint(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	}
	if f, ok := coerce.Float(value); ok {
		return f
	}
	if s, ok := value.(fmt.Stringer); ok {
		return s.String()
	}
	return value
}

// Equal reports whether two keys serialize identically.
func Equal(a, b any) bool {
	return Serialize(a) == Serialize(b)
}

// Encode marshals the entity name and key into a URL-safe base64-encoded JSON array, suitable
// as an opaque identity across entity types.
func Encode(entity string, key any) string {
	payload := []any{entity}
	if composite, ok := key.(Key); ok {
		payload = append(payload, Canonical(composite).([]any)...)
	} else {
		payload = append(payload, Canonical(key))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses an identity produced by Encode and returns the entity name and raw key parts.
func Decode(id string) (string, []any, error) {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return "", nil, fmt.Errorf("invalid id: %w", err)
	}
	var payload []any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil, fmt.Errorf("invalid id: %w", err)
	}
	if len(payload) < 2 {
		return "", nil, errors.New("invalid id: missing entity or primary key values")
	}
	entity, ok := payload[0].(string)
	if !ok || entity == "" {
		return "", nil, errors.New("invalid id: missing entity name")
	}
	return entity, payload[1:], nil
}
