// Package pivot plans the join-table entities behind many-to-many properties and
// classifies pivot entities found in a resolved registry.
package pivot

import (
	"strings"

	"entitymeta/internal/metadata"
	"entitymeta/internal/naming"
)

// Type classifies how a pivot entity is keyed.
type Type int

const (
	// NotPivot indicates the entity is not a pivot.
	NotPivot Type = iota
	// CompositeKey pivots are keyed by both join column sets.
	CompositeKey
	// Sequenced pivots are keyed by a synthesized auto-increment column that also fixes order.
	Sequenced
)

// String returns a human-readable representation of the pivot type.
func (t Type) String() string {
	switch t {
	case NotPivot:
		return "NotPivot"
	case CompositeKey:
		return "CompositeKey"
	case Sequenced:
		return "Sequenced"
	default:
		return "Unknown"
	}
}

// Side is one many-to-one property of a pivot entity.
type Side struct {
	Property          string   // property on the pivot entity (e.g., "book")
	Entity            string   // referenced entity (e.g., "Book")
	Columns           []string // join columns in the pivot table (e.g., ["book_id"])
	ReferencedColumns []string // key columns of the referenced entity (e.g., ["id"])
}

// Plan describes the pivot entity synthesized for one owning many-to-many property.
type Plan struct {
	Entity string
	Table  string
	Type   Type
	// Owner points back at the entity declaring the property, Inverse at its target.
	Owner   Side
	Inverse Side
	// OrderColumn is set for sequenced pivots.
	OrderColumn   string
	SelfReference bool
}

// Build plans the pivot for prop, declared on owner and targeting target.
// ownerKeys and targetKeys are the resolved primary key columns of both entities.
// Explicit pivot settings on prop win over naming-strategy defaults.
func Build(strategy naming.Strategy, owner *metadata.Entity, prop *metadata.Property, target *metadata.Entity, ownerKeys, targetKeys []string) Plan {
	plan := Plan{Type: CompositeKey}
	declared := prop.Pivot
	if declared == nil {
		declared = &metadata.Pivot{}
	}

	plan.Table = declared.Table
	if plan.Table == "" {
		plan.Table = strategy.JoinTableName(owner.Name, target.Name, prop.Name)
	}
	plan.Entity = declared.Entity
	if plan.Entity == "" {
		plan.Entity = naming.EntityName(plan.Table)
	}

	plan.Owner = Side{
		Property:          propertyName(owner.Root),
		Entity:            owner.Name,
		Columns:           joinColumns(strategy, owner.Root, ownerKeys, declared.JoinColumns),
		ReferencedColumns: append([]string(nil), ownerKeys...),
	}
	plan.Inverse = Side{
		Property:          propertyName(target.Root),
		Entity:            target.Name,
		Columns:           joinColumns(strategy, target.Root, targetKeys, declared.InverseJoinColumns),
		ReferencedColumns: append([]string(nil), targetKeys...),
	}

	// Self references: both sides would derive the same columns and property names.
	if owner.Root == target.Root {
		plan.SelfReference = true
		plan.Owner.Property += "_1"
		plan.Inverse.Property += "_2"
		if equalColumns(plan.Owner.Columns, plan.Inverse.Columns) {
			plan.Owner.Columns = suffixed(plan.Owner.Columns, "_1")
			plan.Inverse.Columns = suffixed(plan.Inverse.Columns, "_2")
		}
	}

	if declared.FixedOrder {
		plan.Type = Sequenced
		plan.OrderColumn = declared.FixedOrderColumn
		if plan.OrderColumn == "" {
			plan.OrderColumn = strategy.ReferenceColumnName()
		}
	}
	return plan
}

// Pivot returns the pivot info for the owning property.
func (p Plan) Pivot() *metadata.Pivot {
	return &metadata.Pivot{
		Entity:             p.Entity,
		Table:              p.Table,
		JoinColumns:        append([]string(nil), p.Owner.Columns...),
		InverseJoinColumns: append([]string(nil), p.Inverse.Columns...),
		FixedOrder:         p.Type == Sequenced,
		FixedOrderColumn:   p.OrderColumn,
	}
}

// Mirror returns a copy of pv seen from the other side of the relation: same table, entity
// and ordering, with the column lists swapped.
func Mirror(pv *metadata.Pivot) *metadata.Pivot {
	if pv == nil {
		return nil
	}
	return &metadata.Pivot{
		Entity:             pv.Entity,
		Table:              pv.Table,
		JoinColumns:        append([]string(nil), pv.InverseJoinColumns...),
		InverseJoinColumns: append([]string(nil), pv.JoinColumns...),
		FixedOrder:         pv.FixedOrder,
		FixedOrderColumn:   pv.FixedOrderColumn,
	}
}

// Descriptor builds the pivot entity. idColumn names the synthesized key of sequenced pivots.
func (p Plan) Descriptor(idColumn string) *metadata.Entity {
	e := metadata.NewEntity(p.Entity)
	e.Table = p.Table
	e.Pivot = true

	if p.Type == Sequenced {
		e.AddProperty(&metadata.Property{
			Name:       idColumn,
			Kind:       metadata.KindScalar,
			Type:       "integer",
			FieldNames: []string{idColumn},
			Primary:    true,
			Persist:    true,
		})
		e.PrimaryKeys = []string{idColumn}
	}

	for _, side := range []Side{p.Owner, p.Inverse} {
		e.AddProperty(&metadata.Property{
			Name:                  side.Property,
			Kind:                  metadata.KindManyToOne,
			Target:                side.Entity,
			FieldNames:            append([]string(nil), side.Columns...),
			JoinColumns:           append([]string(nil), side.Columns...),
			ReferencedColumnNames: append([]string(nil), side.ReferencedColumns...),
			Primary:               p.Type == CompositeKey,
			Persist:               true,
			Owner:                 true,
			Cascade:               []metadata.Cascade{metadata.CascadeAll},
		})
	}
	if p.Type == CompositeKey {
		e.PrimaryKeys = []string{p.Owner.Property, p.Inverse.Property}
	}

	if p.Type == Sequenced && p.OrderColumn != idColumn {
		e.AddProperty(&metadata.Property{
			Name:       p.OrderColumn,
			Kind:       metadata.KindScalar,
			Type:       "integer",
			FieldNames: []string{p.OrderColumn},
			Persist:    true,
		})
	}
	return e
}

func joinColumns(strategy naming.Strategy, entity string, keys, declared []string) []string {
	if len(declared) > 0 {
		return append([]string(nil), declared...)
	}
	cols := make([]string, 0, len(keys))
	for _, key := range keys {
		cols = append(cols, strategy.JoinKeyColumnName(entity, key))
	}
	return cols
}

func propertyName(entity string) string {
	if entity == "" {
		return entity
	}
	return strings.ToLower(entity[:1]) + entity[1:]
}

func suffixed(cols []string, suffix string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c + suffix
	}
	return out
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
