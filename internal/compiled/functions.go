package compiled

import (
	"entitymeta/internal/metadata"
)

// Functions are the compiled operations of one entity. They are stateless and safe
// for concurrent use.
type Functions struct {
	Entity string

	// PrimaryKey returns the key of an instance: a scalar, or a pkey.Key for composite keys.
	// It reports false when any key part is missing.
	PrimaryKey func(rec Record) (any, bool)
	// Snapshot copies the comparable properties of an instance into a detached record.
	Snapshot func(rec Record) Record
	// Diff returns the properties whose values differ, with their current values.
	Diff func(last, current Record) Record
	// MapRow renames a raw row's columns to property names and converts wire values.
	MapRow func(row Row) Record

	nested func(v any) any
}

// snapshotField is the plan for one comparable property.
type snapshotField struct {
	name    string
	path    []string
	convert valueFunc
	equal   Equaler
}

func snapshotFields(tk *toolkit, e *metadata.Entity) []snapshotField {
	props := e.ComparableProperties()
	out := make([]snapshotField, 0, len(props))
	for _, p := range props {
		out = append(out, snapshotField{
			name:    p.Name,
			path:    p.EmbeddedPath,
			convert: tk.snapshotValue(p),
			equal:   equalerFor(p, tk.types, tk.location()),
		})
	}
	return out
}

// build plans every function of e against the sealed registry.
func build(tk *toolkit, e *metadata.Entity) *Functions {
	keyProps := e.PrimaryKeyProps()
	fields := snapshotFields(tk, e)
	rows := tk.rowFields(e)

	nested := nestedProps(e)
	nestedConvert := make([]valueFunc, len(nested))
	for i, p := range nested {
		nestedConvert[i] = tk.snapshotValue(p)
	}

	return &Functions{
		Entity: e.Name,
		PrimaryKey: func(rec Record) (any, bool) {
			return tk.primaryKey(keyProps, rec)
		},
		Snapshot: func(rec Record) Record {
			return snapshot(fields, rec)
		},
		Diff: func(last, current Record) Record {
			return diff(fields, last, current)
		},
		MapRow: func(row Row) Record {
			return mapRow(rows, row)
		},
		nested: func(v any) any {
			return nestedSnapshot(nested, nestedConvert, v)
		},
	}
}

func snapshot(fields []snapshotField, rec Record) Record {
	out := make(Record, len(fields))
	if rec == nil {
		return out
	}
	for _, f := range fields {
		v, ok := lookup(rec, f.name, f.path)
		if !ok {
			continue
		}
		if v == nil {
			out[f.name] = nil
			continue
		}
		out[f.name] = f.convert(v)
	}
	return out
}

// diff treats a missing property as nil. A property missing on both sides is unchanged.
func diff(fields []snapshotField, last, current Record) Record {
	out := make(Record)
	for _, f := range fields {
		a, okA := lookup(last, f.name, f.path)
		b, okB := lookup(current, f.name, f.path)
		if !okA && !okB {
			continue
		}
		if f.equal(a, b) {
			continue
		}
		out[f.name] = b
	}
	return out
}
