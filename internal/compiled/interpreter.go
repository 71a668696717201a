package compiled

import (
	"entitymeta/internal/metadata"
)

// Interpreter runs the same operations as the compiled functions by walking the
// metadata on every call. It keeps no state besides the registry and is used as the
// reference the compiled functions are checked against.
type Interpreter struct {
	tk *toolkit
}

// NewInterpreter returns an interpreter over a sealed registry.
// WithMetrics and WithLogger are ignored.
func NewInterpreter(reg *metadata.Registry, opts ...Option) *Interpreter {
	o := newOptions(opts)
	in := &Interpreter{}
	in.tk = &toolkit{reg: reg, platform: o.platform, types: o.types, link: in}
	return in
}

// PrimaryKey extracts the primary key of rec.
func (in *Interpreter) PrimaryKey(entity string, rec Record) (any, bool, error) {
	e, err := in.tk.reg.Get(entity)
	if err != nil {
		return nil, false, err
	}
	key, ok := in.tk.primaryKey(e.PrimaryKeyProps(), rec)
	return key, ok, nil
}

// Snapshot returns a detached copy of the comparable properties of rec.
func (in *Interpreter) Snapshot(entity string, rec Record) (Record, error) {
	e, err := in.tk.reg.Get(entity)
	if err != nil {
		return nil, err
	}
	out := make(Record)
	for _, p := range e.ComparableProperties() {
		v, ok := lookup(rec, p.Name, p.EmbeddedPath)
		if !ok {
			continue
		}
		if v == nil {
			out[p.Name] = nil
			continue
		}
		out[p.Name] = in.tk.snapshotValue(p)(v)
	}
	return out, nil
}

// Diff compares two snapshots of entity.
func (in *Interpreter) Diff(entity string, last, current Record) (Record, error) {
	e, err := in.tk.reg.Get(entity)
	if err != nil {
		return nil, err
	}
	out := make(Record)
	for _, p := range e.ComparableProperties() {
		a, okA := lookup(last, p.Name, p.EmbeddedPath)
		b, okB := lookup(current, p.Name, p.EmbeddedPath)
		if !okA && !okB {
			continue
		}
		if equalerFor(p, in.tk.types, in.tk.location())(a, b) {
			continue
		}
		out[p.Name] = b
	}
	return out, nil
}

// MapRow converts a raw row of entity.
func (in *Interpreter) MapRow(entity string, row Row) (Record, error) {
	e, err := in.tk.reg.Get(entity)
	if err != nil {
		return nil, err
	}
	return mapRow(in.tk.rowFields(e), row), nil
}

func (in *Interpreter) primaryKeyOf(entity string, rec Record) (any, bool) {
	key, ok, err := in.PrimaryKey(entity, rec)
	if err != nil {
		return nil, false
	}
	return key, ok
}

func (in *Interpreter) nestedSnapshotOf(entity string, v any) any {
	e, err := in.tk.reg.Get(entity)
	if err != nil {
		return deepCopy(v)
	}
	props := nestedProps(e)
	convert := make([]valueFunc, len(props))
	for i, p := range props {
		convert[i] = in.tk.snapshotValue(p)
	}
	return nestedSnapshot(props, convert, v)
}

func (in *Interpreter) mapRowOf(entity string, row Row) Record {
	rec, err := in.MapRow(entity, row)
	if err != nil {
		return Record(row)
	}
	return rec
}
