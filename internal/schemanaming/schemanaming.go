// Package schemanaming derives tables and column names for resolved entities.
package schemanaming

import (
	"entitymeta/internal/metadata"
	"entitymeta/internal/naming"
)

// Apply assigns tables and field names to every entity in the registry using the
// provided strategy. Names that were declared explicitly are kept, so running it
// twice yields the same result.
func Apply(reg *metadata.Registry, strategy naming.Strategy) error {
	if reg == nil {
		return nil
	}
	if strategy == nil {
		strategy = naming.Default()
	}
	k := NewKeys(reg)

	for _, e := range reg.Entities() {
		if e.Embeddable {
			continue
		}
		if e.Table == "" {
			e.Table = tableName(reg, e, strategy)
		}
	}

	for _, e := range reg.Entities() {
		for _, p := range e.Props() {
			if err := k.fieldNames(e, p, strategy); err != nil {
				return err
			}
		}
	}
	return nil
}

// tableName returns the table of an entity. Members of a single-table hierarchy share the root's.
func tableName(reg *metadata.Registry, e *metadata.Entity, strategy naming.Strategy) string {
	if e.STI && e.Root != e.Name {
		if root, ok := reg.Lookup(e.Root); ok {
			if root.Table == "" {
				root.Table = strategy.ClassToTableName(root.Name)
			}
			return root.Table
		}
	}
	return strategy.ClassToTableName(e.Name)
}

// Keys resolves the primary key columns of entities, following relations that are
// themselves part of a primary key.
type Keys struct {
	reg      *metadata.Registry
	cache    map[string][]string
	visiting map[string]bool
}

// NewKeys returns a resolver over reg.
func NewKeys(reg *metadata.Registry) *Keys {
	return &Keys{
		reg:      reg,
		cache:    make(map[string][]string),
		visiting: make(map[string]bool),
	}
}

// KeyColumns returns the primary key columns of the named entity in key order.
func KeyColumns(reg *metadata.Registry, strategy naming.Strategy, entity string) ([]string, error) {
	return NewKeys(reg).Columns(entity, strategy)
}

// Columns returns the primary key columns of the named entity in key order.
func (k *Keys) Columns(entity string, strategy naming.Strategy) ([]string, error) {
	if cols, ok := k.cache[entity]; ok {
		return cols, nil
	}
	e, err := k.reg.Get(entity)
	if err != nil {
		return nil, err
	}
	if k.visiting[entity] {
		return nil, metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, entity, "", "circular primary key reference")
	}
	k.visiting[entity] = true
	defer delete(k.visiting, entity)

	var cols []string
	for _, p := range e.PrimaryKeyProps() {
		if err := k.fieldNames(e, p, strategy); err != nil {
			return nil, err
		}
		cols = append(cols, p.FieldNames...)
	}
	k.cache[entity] = cols
	return cols, nil
}

func (k *Keys) fieldNames(e *metadata.Entity, p *metadata.Property, strategy naming.Strategy) error {
	if len(p.FieldNames) > 0 {
		return nil
	}
	switch {
	case p.Kind == metadata.KindScalar:
		p.FieldNames = []string{strategy.PropertyToColumnName(p.Name)}
	case p.Kind == metadata.KindEmbedded:
		// Inline embeds are stored through their flattened properties.
		if !p.IsInlineEmbed() {
			p.FieldNames = []string{strategy.PropertyToColumnName(p.Name)}
		}
	case p.Kind.IsReference() && p.Owner:
		refs, err := k.Columns(p.Target, strategy)
		if err != nil {
			return err
		}
		if len(p.ReferencedColumnNames) == 0 {
			p.ReferencedColumnNames = append([]string(nil), refs...)
		}
		if len(p.JoinColumns) > 0 {
			if len(p.JoinColumns) != len(p.ReferencedColumnNames) {
				return metadata.NewError(metadata.ErrMissingRequiredOption, e.Name, p.Name,
					"join_columns must match the referenced primary key columns")
			}
			p.FieldNames = append([]string(nil), p.JoinColumns...)
			return nil
		}
		for _, ref := range p.ReferencedColumnNames {
			p.FieldNames = append(p.FieldNames, strategy.JoinKeyColumnName(p.Name, ref))
		}
		p.JoinColumns = append([]string(nil), p.FieldNames...)
	}
	return nil
}
