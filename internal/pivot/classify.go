package pivot

import (
	"entitymeta/internal/metadata"
)

// Info contains classification metadata for a pivot entity.
type Info struct {
	Entity string
	Table  string
	Type   Type
	// Left and Right are the two many-to-one sides in declaration order.
	Left  Side
	Right Side
	// AttributeProperties lists persisted properties that are neither side nor key.
	AttributeProperties []string
}

// Map maps pivot entity names to their classification info.
type Map map[string]Info

// Classify scans a registry for pivot entities.
// An entity is classified as a pivot when:
//   - It is flagged as a pivot
//   - It has exactly 2 many-to-one properties to registered entities
//   - Both sides are non-nullable
//   - Its primary key is either both sides (CompositeKey) or a single scalar (Sequenced)
func Classify(reg *metadata.Registry) Map {
	result := make(Map)
	for _, e := range reg.Entities() {
		if info, ok := classifyEntity(e, reg); ok {
			result[e.Name] = info
		}
	}
	return result
}

func classifyEntity(e *metadata.Entity, reg *metadata.Registry) (Info, bool) {
	if !e.Pivot {
		return Info{}, false
	}

	var sides []*metadata.Property
	var attrs []string
	for _, p := range e.Props() {
		if p.Kind == metadata.KindManyToOne {
			sides = append(sides, p)
			continue
		}
		if p.Persist && !p.Primary {
			attrs = append(attrs, p.Name)
		}
	}

	// Rule 1: exactly two sides
	if len(sides) != 2 {
		return Info{}, false
	}
	// Rule 2: both referenced entities exist and sides are required
	for _, side := range sides {
		if _, ok := reg.Lookup(side.Target); !ok || side.Nullable {
			return Info{}, false
		}
	}

	// Rule 3: key shape decides the type
	pivotType := NotPivot
	switch {
	case len(e.PrimaryKeys) == 2 && sides[0].Primary && sides[1].Primary:
		pivotType = CompositeKey
	case len(e.PrimaryKeys) == 1 && !sides[0].Primary && !sides[1].Primary:
		pivotType = Sequenced
	default:
		return Info{}, false
	}

	return Info{
		Entity:              e.Name,
		Table:               e.Table,
		Type:                pivotType,
		Left:                sideOf(sides[0]),
		Right:               sideOf(sides[1]),
		AttributeProperties: attrs,
	}, true
}

func sideOf(p *metadata.Property) Side {
	return Side{
		Property:          p.Name,
		Entity:            p.Target,
		Columns:           append([]string(nil), p.FieldNames...),
		ReferencedColumns: append([]string(nil), p.ReferencedColumnNames...),
	}
}
