package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"entitymeta/internal/uuidutil"
)

// Type converts a property value between its in-memory and stored representations.
type Type interface {
	ToStorage(value any) (any, error)
	FromStorage(value any) (any, error)
}

// Comparer is implemented by types that decide equality themselves.
// It overrides every built-in comparison rule.
type Comparer interface {
	Compare(a, b any) bool
}

// Types is a name -> Type registry shared by the resolver and the compiled functions.
type Types struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewTypes returns a registry preloaded with the built-in custom types.
func NewTypes() *Types {
	t := &Types{types: make(map[string]Type)}
	t.Register("json", JSONType{})
	t.Register("uuid_binary", UUIDBinaryType{})
	return t
}

// Register adds or replaces a custom type.
func (t *Types) Register(name string, typ Type) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.types[name] = typ
}

// Lookup returns the named custom type.
func (t *Types) Lookup(name string) (Type, bool) {
	if t == nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	typ, ok := t.types[name]
	return typ, ok
}

// JSONType stores values as JSON text and compares them structurally.
type JSONType struct{}

func (JSONType) ToStorage(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json value: %w", err)
	}
	return string(data), nil
}

func (JSONType) FromStorage(value any) (any, error) {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return v, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode json value: %w", err)
	}
	return out, nil
}

// Compare decodes both sides so formatting differences are ignored.
func (j JSONType) Compare(a, b any) bool {
	da, errA := j.decoded(a)
	db, errB := j.decoded(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(da, db)
}

func (j JSONType) decoded(v any) (any, error) {
	switch v.(type) {
	case string, []byte:
		return j.FromStorage(v)
	}
	// Round-trip in-memory values so numeric types match the decoded form.
	stored, err := j.ToStorage(v)
	if err != nil {
		return nil, err
	}
	return j.FromStorage(stored)
}

// UUIDBinaryType keeps uuids as lower-case strings in memory and 16 bytes in storage.
type UUIDBinaryType struct{}

func (UUIDBinaryType) ToStorage(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	s, ok := uuidutil.Normalize(value)
	if !ok {
		return nil, fmt.Errorf("invalid UUID value %v", value)
	}
	u := uuid.MustParse(s)
	out := make([]byte, len(u))
	copy(out, u[:])
	return out, nil
}

func (UUIDBinaryType) FromStorage(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	s, ok := uuidutil.Normalize(value)
	if !ok {
		return nil, fmt.Errorf("invalid UUID value %v", value)
	}
	return s, nil
}

func (UUIDBinaryType) Compare(a, b any) bool {
	sa, okA := uuidutil.Normalize(a)
	sb, okB := uuidutil.Normalize(b)
	if okA && okB {
		return sa == sb
	}
	ba, okA := a.([]byte)
	bb, okB := b.([]byte)
	return okA && okB && bytes.Equal(ba, bb)
}
