// Package compiled builds and caches the per-entity functions used on hot paths:
// primary key extraction, snapshots, snapshot diffs and raw row mapping.
//
// Functions are planned once per entity from the sealed registry. Related and
// embeddable functions are looked up when called, so cyclic entity graphs never
// recurse while building.
package compiled

// Record is an entity instance or snapshot keyed by property name.
type Record map[string]any

// Row is a raw database row keyed by column name.
type Row map[string]any

// Reference is a lazy handle on a related instance that may not be loaded.
// Either Record or Key is set.
type Reference struct {
	Entity string
	Record Record
	Key    any
}

// NewReference returns an unloaded reference to entity identified by key.
func NewReference(entity string, key any) *Reference {
	return &Reference{Entity: entity, Key: key}
}

// Loaded reports whether the referenced instance is available.
func (r *Reference) Loaded() bool {
	return r != nil && r.Record != nil
}

// asRecord converts the shapes a nested record may arrive in.
func asRecord(v any) (Record, bool) {
	switch r := v.(type) {
	case Record:
		return r, true
	case map[string]any:
		return Record(r), true
	case Row:
		return Record(r), true
	default:
		return nil, false
	}
}

// lookup reads a property value. Flattened embedded properties are read through the
// nested records along their embedded path, then by their flat name.
func lookup(rec Record, name string, path []string) (any, bool) {
	if len(path) > 0 {
		if v, ok := lookupPath(rec, path); ok {
			return v, true
		}
	}
	v, ok := rec[name]
	return v, ok
}

func lookupPath(rec Record, path []string) (any, bool) {
	cur := rec
	for i, step := range path {
		v, ok := cur[step]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		if v == nil {
			// A nil embedded value makes every nested property nil.
			return nil, true
		}
		next, ok := asRecord(v)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}
