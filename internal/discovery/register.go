package discovery

import (
	"fmt"
	"strings"

	"entitymeta/internal/metadata"
	"entitymeta/internal/setutil"
)

var cascadeOptions = []string{
	string(metadata.CascadePersist),
	string(metadata.CascadeMerge),
	string(metadata.CascadeRemove),
	string(metadata.CascadeAll),
}

// register converts declarations into descriptors. Relation targets and base entities
// may be declared later; forward references go through registry placeholders and must
// all be backed by a declaration once every entity is registered.
func (r *resolver) register(decls []metadata.EntityDeclaration) error {
	for i := range decls {
		d := &decls[i]
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return metadata.NewError(metadata.ErrMissingRequiredOption, fmt.Sprintf("entities[%d]", i), "", "name is required")
		}
		if _, ok := r.decls[name]; ok {
			return metadata.NewError(metadata.ErrDuplicateEntityName, name, "", "declared more than once")
		}

		e, err := r.entityFromDeclaration(name, d)
		if err != nil {
			return err
		}
		added, err := r.reg.Add(e)
		if err != nil {
			return err
		}
		for _, p := range added.Props() {
			if p.Target == "" {
				continue
			}
			if _, err := r.reg.GetOrPlaceholder(p.Target); err != nil {
				return err
			}
		}
		r.decls[name] = d
		r.order = append(r.order, name)
	}

	for _, name := range r.order {
		e, err := r.reg.Get(name)
		if err != nil {
			return err
		}
		if e.Extends != "" {
			if _, ok := r.decls[e.Extends]; !ok {
				return metadata.NewError(metadata.ErrUnknownBaseEntity, e.Name, "", fmt.Sprintf("extends %q", e.Extends))
			}
		}
		for _, p := range e.Props() {
			if p.Target == "" {
				continue
			}
			if _, ok := r.decls[p.Target]; !ok {
				return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name,
					fmt.Sprintf("target %q is not declared", p.Target))
			}
		}
	}
	return nil
}

func (r *resolver) entityFromDeclaration(name string, d *metadata.EntityDeclaration) (*metadata.Entity, error) {
	e := metadata.NewEntity(name)
	e.Table = strings.TrimSpace(d.Table)
	e.Extends = strings.TrimSpace(d.Extends)
	e.Abstract = d.Abstract
	e.Embeddable = d.Embeddable
	e.Virtual = d.Virtual
	e.DiscriminatorColumn = d.DiscriminatorColumn
	e.DiscriminatorValue = d.DiscriminatorValue
	if len(d.DiscriminatorMap) > 0 {
		e.DiscriminatorMap = make(map[string]string, len(d.DiscriminatorMap))
		for value, entity := range d.DiscriminatorMap {
			e.DiscriminatorMap[value] = entity
		}
	}
	e.Hooks = setutil.MergeLists(nil, d.Hooks)
	e.Indexes = indexes(d.Indexes)
	e.Uniques = indexes(d.Uniques)

	switch strings.ToLower(strings.TrimSpace(d.Inheritance)) {
	case "":
	case "sti", "single_table":
		r.stiRoots[name] = true
	default:
		return nil, metadata.NewError(metadata.ErrMissingRequiredOption, name, "",
			fmt.Sprintf("unsupported inheritance %q", d.Inheritance))
	}

	for i := range d.Properties {
		p, err := r.propertyFromDeclaration(name, &d.Properties[i])
		if err != nil {
			return nil, err
		}
		if _, exists := e.Properties[p.Name]; exists {
			return nil, metadata.NewError(metadata.ErrConflictingPropertyName, name, p.Name, "declared more than once")
		}
		p.Order = float64(i)
		e.Properties[p.Name] = p
		if p.Primary {
			e.PrimaryKeys = append(e.PrimaryKeys, p.Name)
		}
	}
	return e, nil
}

func (r *resolver) propertyFromDeclaration(entity string, pd *metadata.PropertyDeclaration) (*metadata.Property, error) {
	name := strings.TrimSpace(pd.Name)
	if name == "" {
		return nil, metadata.NewError(metadata.ErrMissingRequiredOption, entity, "", "property name is required")
	}
	kind, err := metadata.ParseKind(pd.Kind)
	if err != nil {
		return nil, metadata.NewError(metadata.ErrMissingRequiredOption, entity, name, err.Error())
	}

	persist := true
	if pd.Persist != nil {
		persist = *pd.Persist
	}

	p := &metadata.Property{
		Name:                  name,
		Kind:                  kind,
		Type:                  strings.TrimSpace(pd.Type),
		Target:                strings.TrimSpace(pd.Target),
		Nullable:              pd.Nullable,
		Primary:               pd.Primary,
		Persist:               persist,
		Version:               pd.Version,
		Owner:                 pd.Owner,
		InversedBy:            pd.InversedBy,
		MappedBy:              pd.MappedBy,
		JoinColumns:           cloneStrings(pd.JoinColumns),
		ReferencedColumnNames: cloneStrings(pd.ReferencedColumnNames),
		CustomType:            pd.CustomType,
		Object:                pd.Object,
		Array:                 pd.Array,
		Prefix:                pd.Prefix,
		Enum:                  pd.Enum,
		Items:                 cloneStrings(pd.Items),
		Default:               pd.Default,
	}
	if pd.FieldName != "" {
		p.FieldNames = []string{pd.FieldName}
	}

	cascade, err := setutil.Canonicalize(pd.Cascade, cascadeOptions)
	if err != nil {
		return nil, metadata.NewError(metadata.ErrMissingRequiredOption, entity, name, "cascade: "+err.Error())
	}
	for _, c := range cascade {
		p.Cascade = append(p.Cascade, metadata.Cascade(c))
	}

	switch {
	case kind == metadata.KindScalar:
		if p.Enum && len(p.Items) == 0 {
			return nil, metadata.NewError(metadata.ErrMissingRequiredOption, entity, name, "enum requires items")
		}
		if p.Type == "" {
			switch {
			case p.Enum:
				p.Type = "enum"
			case p.CustomType != "":
				p.Type = p.CustomType
			default:
				return nil, metadata.NewError(metadata.ErrMissingRequiredOption, entity, name, "type is required")
			}
		}
		if p.CustomType != "" {
			if _, ok := r.opts.Types.Lookup(p.CustomType); !ok {
				return nil, metadata.NewError(metadata.ErrMissingRequiredOption, entity, name,
					fmt.Sprintf("custom type %q is not registered", p.CustomType))
			}
		}
	case kind == metadata.KindEmbedded:
		if p.Target == "" {
			return nil, metadata.NewError(metadata.ErrMissingRequiredOption, entity, name, "embedded property requires a target")
		}
		if p.Type == "" {
			p.Type = p.Target
		}
	default:
		if p.Target == "" {
			return nil, metadata.NewError(metadata.ErrMissingRequiredOption, entity, name,
				fmt.Sprintf("%s relation requires a target", kind))
		}
		if p.Type == "" {
			p.Type = p.Target
		}
	}

	if kind == metadata.KindManyToMany && hasPivotOptions(pd) {
		p.Pivot = &metadata.Pivot{
			Entity:             pd.PivotEntity,
			Table:              pd.PivotTable,
			JoinColumns:        cloneStrings(pd.PivotJoinColumns),
			InverseJoinColumns: cloneStrings(pd.PivotInverseJoin),
			FixedOrder:         pd.FixedOrder || pd.FixedOrderColumn != "",
			FixedOrderColumn:   pd.FixedOrderColumn,
		}
	}
	return p, nil
}

func hasPivotOptions(pd *metadata.PropertyDeclaration) bool {
	return pd.PivotTable != "" || pd.PivotEntity != "" ||
		len(pd.PivotJoinColumns) > 0 || len(pd.PivotInverseJoin) > 0 ||
		pd.FixedOrder || pd.FixedOrderColumn != ""
}

func indexes(decls []metadata.IndexDeclaration) []metadata.Index {
	if len(decls) == 0 {
		return nil
	}
	out := make([]metadata.Index, 0, len(decls))
	for _, d := range decls {
		out = append(out, metadata.Index{Name: d.Name, Properties: cloneStrings(d.Properties)})
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
