package compiled

import (
	"reflect"
	"time"

	"entitymeta/internal/coerce"
	"entitymeta/internal/logicaltype"
	"entitymeta/internal/metadata"
	"entitymeta/internal/pkey"
	"entitymeta/internal/platform"
	"entitymeta/internal/uuidutil"
)

// valueFunc converts one property value.
type valueFunc func(v any) any

// linker resolves functions of related and embeddable entities at call time.
type linker interface {
	primaryKeyOf(entity string, rec Record) (any, bool)
	nestedSnapshotOf(entity string, v any) any
	mapRowOf(entity string, row Row) Record
}

// toolkit holds what every function builder needs.
type toolkit struct {
	reg      *metadata.Registry
	platform platform.Platform
	types    *platform.Types
	link     linker
}

func (tk *toolkit) location() *time.Location {
	return tk.platform.Location()
}

func (tk *toolkit) customType(p *metadata.Property) (platform.Type, bool) {
	if p.CustomType == "" {
		return nil, false
	}
	return tk.types.Lookup(p.CustomType)
}

// primaryKey reads the key of rec. Composite keys are returned as pkey.Key.
func (tk *toolkit) primaryKey(props []*metadata.Property, rec Record) (any, bool) {
	if rec == nil || len(props) == 0 {
		return nil, false
	}
	parts := make(pkey.Key, 0, len(props))
	for _, p := range props {
		v, ok := lookup(rec, p.Name, p.EmbeddedPath)
		if !ok || v == nil {
			return nil, false
		}
		if p.Kind.IsReference() {
			v = tk.relationKey(p.Target, v)
			if v == nil {
				return nil, false
			}
		}
		parts = append(parts, v)
	}
	if len(parts) == 1 {
		return parts[0], true
	}
	return parts, true
}

// relationKey reduces a related value to the related instance's primary key.
// Bare values are taken to be keys already.
func (tk *toolkit) relationKey(target string, v any) any {
	switch r := v.(type) {
	case nil:
		return nil
	case *Reference:
		if r == nil {
			return nil
		}
		if r.Loaded() {
			entity := target
			if r.Entity != "" {
				entity = r.Entity
			}
			key, _ := tk.link.primaryKeyOf(entity, r.Record)
			return key
		}
		return r.Key
	}
	if rec, ok := asRecord(v); ok {
		key, _ := tk.link.primaryKeyOf(target, rec)
		return key
	}
	return v
}

// snapshotValue returns the snapshot conversion of one property.
func (tk *toolkit) snapshotValue(p *metadata.Property) valueFunc {
	if typ, ok := tk.customType(p); ok {
		return func(v any) any {
			if v == nil {
				return nil
			}
			out, err := typ.ToStorage(v)
			if err != nil {
				return deepCopy(v)
			}
			return out
		}
	}
	switch {
	case p.Kind.IsReference():
		target := p.Target
		return func(v any) any { return tk.relationKey(target, v) }
	case p.Kind == metadata.KindEmbedded && p.Array:
		target := p.Target
		return func(v any) any { return tk.nestedList(target, v) }
	case p.Kind == metadata.KindEmbedded:
		target := p.Target
		return func(v any) any { return tk.link.nestedSnapshotOf(target, v) }
	}
	category := logicaltype.Classify(p.Type)
	return func(v any) any { return tk.normalize(category, v) }
}

func (tk *toolkit) normalize(category logicaltype.Category, v any) any {
	switch t := v.(type) {
	case time.Time:
		return tk.platform.NormalizeDate(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return tk.platform.NormalizeDate(*t)
	}
	if category == logicaltype.UUID {
		if s, ok := uuidutil.Normalize(v); ok {
			return s
		}
	}
	return deepCopy(v)
}

func (tk *toolkit) nestedList(target string, v any) any {
	items, ok := listItems(v)
	if !ok {
		return deepCopy(v)
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = tk.link.nestedSnapshotOf(target, item)
	}
	return out
}

// listItems returns the elements of any slice or array, such as []Record or []map[string]any.
func listItems(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// nestedProps are the properties an embedded value carries when stored as one nested record.
// Inline embeds of the embeddable are kept as nested records although flattening marked
// them not persisted; other non-persisted properties are dropped.
func nestedProps(e *metadata.Entity) []*metadata.Property {
	var out []*metadata.Property
	for _, p := range e.Props() {
		if p.IsFlattened() || p.Kind.IsCollection() {
			continue
		}
		if !p.Persist && !p.IsInlineEmbed() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// nestedSnapshot snapshots an embedded value with the given per-property conversions.
func nestedSnapshot(props []*metadata.Property, convert []valueFunc, v any) any {
	rec, ok := asRecord(v)
	if !ok {
		return deepCopy(v)
	}
	out := make(Record, len(props))
	for i, p := range props {
		val, present := rec[p.Name]
		if !present {
			continue
		}
		out[p.Name] = convert[i](val)
	}
	return out
}

// rowValue returns the row conversion of a single-column property.
func (tk *toolkit) rowValue(p *metadata.Property) valueFunc {
	if typ, ok := tk.customType(p); ok {
		return func(v any) any {
			out, err := typ.FromStorage(v)
			if err != nil {
				return v
			}
			return out
		}
	}
	switch {
	case p.Kind.IsReference():
		return driverValue
	case p.Kind == metadata.KindEmbedded:
		target, array := p.Target, p.Array
		return func(v any) any { return tk.embeddedFromRow(target, array, v) }
	}

	switch category := logicaltype.Classify(p.Type); category {
	case logicaltype.Boolean:
		return func(v any) any {
			if b, ok := coerce.Bool(v); ok {
				return b
			}
			return v
		}
	case logicaltype.DateTime:
		loc := tk.location()
		return func(v any) any {
			if t, ok := coerce.DateTime(v, loc); ok {
				return t
			}
			return v
		}
	case logicaltype.Date:
		return func(v any) any {
			if d, ok := coerce.Date(v); ok {
				return d
			}
			return v
		}
	case logicaltype.Number:
		return func(v any) any {
			if b, ok := v.([]byte); ok {
				if n, ok := coerce.Number(b); ok {
					return n
				}
				return string(b)
			}
			return v
		}
	case logicaltype.UUID:
		return func(v any) any {
			if s, ok := uuidutil.Normalize(v); ok {
				return s
			}
			return v
		}
	case logicaltype.JSON, logicaltype.Array:
		return decodeJSON
	case logicaltype.Bytes:
		return func(v any) any { return v }
	default:
		return driverValue
	}
}

func (tk *toolkit) embeddedFromRow(target string, array bool, v any) any {
	v = decodeJSON(v)
	if array {
		items, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, len(items))
		for i, item := range items {
			if rec, ok := asRecord(item); ok {
				out[i] = tk.link.mapRowOf(target, Row(rec))
				continue
			}
			out[i] = item
		}
		return out
	}
	if rec, ok := asRecord(v); ok {
		return tk.link.mapRowOf(target, Row(rec))
	}
	return v
}

// rowField maps the columns of one property back to the property.
type rowField struct {
	name    string
	columns []string
	convert valueFunc
}

func (tk *toolkit) rowFields(e *metadata.Entity) []rowField {
	var out []rowField
	for _, p := range e.Props() {
		if !p.Persist || len(p.FieldNames) == 0 || p.Kind.IsCollection() {
			continue
		}
		out = append(out, rowField{name: p.Name, columns: p.FieldNames, convert: tk.rowValue(p)})
	}
	return out
}

// read returns the property value of f from row. Multi-column relations are regrouped
// into one pkey.Key; a key whose columns are all nil is nil.
func (f rowField) read(row Row) (any, bool) {
	if len(f.columns) == 1 {
		v, ok := row[f.columns[0]]
		if !ok {
			return nil, false
		}
		if v == nil {
			return nil, true
		}
		return f.convert(v), true
	}

	parts := make(pkey.Key, len(f.columns))
	present, allNil := false, true
	for i, col := range f.columns {
		v, ok := row[col]
		if !ok {
			continue
		}
		present = true
		if v != nil {
			allNil = false
			parts[i] = f.convert(v)
		}
	}
	if !present {
		return nil, false
	}
	if allNil {
		return nil, true
	}
	return parts, true
}

func mapRow(fields []rowField, row Row) Record {
	out := make(Record, len(row))
	consumed := make(map[string]bool, len(row))
	for _, f := range fields {
		v, ok := f.read(row)
		if !ok {
			continue
		}
		out[f.name] = v
		for _, col := range f.columns {
			consumed[col] = true
		}
	}
	for col, v := range row {
		if consumed[col] {
			continue
		}
		if _, taken := out[col]; !taken {
			out[col] = v
		}
	}
	return out
}

// driverValue turns driver text into strings.
func driverValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func decodeJSON(v any) any {
	switch v.(type) {
	case string, []byte:
		out, err := platform.JSONType{}.FromStorage(v)
		if err != nil {
			return driverValue(v)
		}
		return out
	default:
		return v
	}
}

// deepCopy copies maps, records, slices, arrays, pointers and struct fields so snapshots
// never alias live values.
func deepCopy(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case Record:
		out := make(Record, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	case pkey.Key:
		out := make(pkey.Key, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case time.Time, string, bool, int, int64, float64:
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Pointer, reflect.Struct:
		c := copier{seen: make(map[uintptr]reflect.Value)}
		return c.copy(rv).Interface()
	default:
		return v
	}
}

// copier deep copies arbitrary values. Pointers already copied are reused so cyclic
// values terminate. Unexported struct fields keep their original value.
type copier struct {
	seen map[uintptr]reflect.Value
}

func (c copier) copy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.copy(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(c.copy(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), c.copy(iter.Value()))
		}
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(c.copy(v.Elem()))
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		if done, ok := c.seen[v.Pointer()]; ok {
			return done
		}
		out := reflect.New(v.Type().Elem())
		c.seen[v.Pointer()] = out
		out.Elem().Set(c.copy(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if f := out.Field(i); f.CanSet() {
				f.Set(c.copy(v.Field(i)))
			}
		}
		return out
	default:
		return v
	}
}
