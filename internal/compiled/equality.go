package compiled

import (
	"bytes"
	"fmt"
	"reflect"
	"time"

	"entitymeta/internal/coerce"
	"entitymeta/internal/logicaltype"
	"entitymeta/internal/metadata"
	"entitymeta/internal/pkey"
	"entitymeta/internal/platform"
	"entitymeta/internal/uuidutil"
)

// Equaler decides whether two snapshot values of one property are equal.
type Equaler func(a, b any) bool

// equalerFor picks the comparison rule for a property. A registered custom type that
// implements platform.Comparer overrides every other rule.
func equalerFor(p *metadata.Property, types *platform.Types, loc *time.Location) Equaler {
	if p.CustomType != "" {
		if typ, ok := types.Lookup(p.CustomType); ok {
			if cmp, ok := typ.(platform.Comparer); ok {
				return nilSafe(cmp.Compare)
			}
		}
	}
	switch {
	case p.Kind.IsReference():
		return nilSafe(pkey.Equal)
	case p.Kind == metadata.KindEmbedded:
		return nilSafe(DeepEqual)
	}
	return nilSafe(categoryEqualer(logicaltype.Classify(p.Type), loc))
}

// nilSafe treats two nils as equal and exactly one nil as different.
func nilSafe(eq Equaler) Equaler {
	return func(a, b any) bool {
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		return eq(a, b)
	}
}

func categoryEqualer(c logicaltype.Category, loc *time.Location) Equaler {
	switch c {
	case logicaltype.Number:
		return numberEqual
	case logicaltype.BigInt:
		return bigIntEqual
	case logicaltype.String, logicaltype.Time:
		return stringEqual
	case logicaltype.Boolean:
		return boolEqual
	case logicaltype.Date:
		return dateEqual
	case logicaltype.DateTime:
		return func(a, b any) bool { return dateTimeEqual(a, b, loc) }
	case logicaltype.Bytes:
		return bytesEqual
	case logicaltype.UUID:
		return uuidEqual
	default:
		return DeepEqual
	}
}

func numberEqual(a, b any) bool {
	na, okA := coerce.Number(a)
	nb, okB := coerce.Number(b)
	if !okA || !okB {
		return DeepEqual(a, b)
	}
	ia, intA := na.(int64)
	ib, intB := nb.(int64)
	if intA && intB {
		return ia == ib
	}
	fa, _ := coerce.Float(na)
	fb, _ := coerce.Float(nb)
	return fa == fb
}

func bigIntEqual(a, b any) bool {
	sa, okA := coerce.BigInt(a)
	sb, okB := coerce.BigInt(b)
	if !okA || !okB {
		return DeepEqual(a, b)
	}
	return sa == sb
}

func stringEqual(a, b any) bool {
	sa, okA := coerce.String(a)
	sb, okB := coerce.String(b)
	if okA && okB {
		return sa == sb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func boolEqual(a, b any) bool {
	ba, okA := coerce.Bool(a)
	bb, okB := coerce.Bool(b)
	if !okA || !okB {
		return DeepEqual(a, b)
	}
	return ba == bb
}

func dateEqual(a, b any) bool {
	da, okA := coerce.Date(a)
	db, okB := coerce.Date(b)
	if !okA || !okB {
		return DeepEqual(a, b)
	}
	return da == db
}

func dateTimeEqual(a, b any, loc *time.Location) bool {
	ta, okA := coerce.DateTime(a, loc)
	tb, okB := coerce.DateTime(b, loc)
	if !okA || !okB {
		return DeepEqual(a, b)
	}
	return coerce.SameInstant(ta, tb)
}

func bytesEqual(a, b any) bool {
	ba, okA := toBytes(a)
	bb, okB := toBytes(b)
	if !okA || !okB {
		return DeepEqual(a, b)
	}
	return bytes.Equal(ba, bb)
}

func toBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	default:
		return nil, false
	}
}

func uuidEqual(a, b any) bool {
	ua, okA := uuidutil.Normalize(a)
	ub, okB := uuidutil.Normalize(b)
	if !okA || !okB {
		return DeepEqual(a, b)
	}
	return ua == ub
}

// DeepEqual compares values structurally. Numbers compare by value across Go numeric
// types, records and maps by key, slices element by element.
func DeepEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := coerce.Float(a); ok {
		if fb, ok := coerce.Float(b); ok {
			return fa == fb
		}
		return false
	}
	if ra, ok := asRecord(a); ok {
		rb, ok := asRecord(b)
		if !ok || len(ra) != len(rb) {
			return false
		}
		for k, va := range ra {
			vb, ok := rb[k]
			if !ok || !DeepEqual(va, vb) {
				return false
			}
		}
		return true
	}
	if ba, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ba, bb)
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if (va.Kind() == reflect.Slice || va.Kind() == reflect.Array) &&
		(vb.Kind() == reflect.Slice || vb.Kind() == reflect.Array) {
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !DeepEqual(va.Index(i).Interface(), vb.Index(i).Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}
