// Package metaschema exposes a resolved registry as a read-only GraphQL schema.
package metaschema

import (
	"sort"

	"github.com/graphql-go/graphql"

	"entitymeta/internal/metadata"
	"entitymeta/internal/pivot"
)

// Builder holds the object types shared by every query field.
type Builder struct {
	reg    *metadata.Registry
	pivots pivot.Map

	pivotType      *graphql.Object
	sideType       *graphql.Object
	classification *graphql.Object
	propertyType   *graphql.Object
	discrEntryType *graphql.Object
	entityType     *graphql.Object
	keyPartType    *graphql.Object
	identityType   *graphql.Object
}

// NewBuilder prepares a schema builder over a sealed registry.
func NewBuilder(reg *metadata.Registry) *Builder {
	return &Builder{reg: reg, pivots: pivot.Classify(reg)}
}

// Build constructs the executable schema. Entities are queried by name, listed with
// optional filters, or looked up from an encoded identity.
func (b *Builder) Build() (graphql.Schema, error) {
	b.buildTypes()

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"namespace": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return b.reg.Namespace(), nil
				},
			},
			"entities": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.entityType))),
				Args: graphql.FieldConfigArgument{
					"pivot":      &graphql.ArgumentConfig{Type: graphql.Boolean},
					"embeddable": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: b.resolveEntities,
			},
			"entity": &graphql.Field{
				Type: b.entityType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name, _ := p.Args["name"].(string)
					if e, ok := b.reg.Lookup(name); ok {
						return e, nil
					}
					return nil, nil
				},
			},
			"identity": &graphql.Field{
				Type:        b.identityType,
				Description: "Decodes an entity identity as written in row samples",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					return ResolveIdentity(b.reg, id)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

func (b *Builder) resolveEntities(p graphql.ResolveParams) (interface{}, error) {
	pivotOnly, filterPivot := p.Args["pivot"].(bool)
	embeddable, filterEmbeddable := p.Args["embeddable"].(bool)

	out := []*metadata.Entity{}
	for _, e := range b.reg.Entities() {
		if filterPivot && e.Pivot != pivotOnly {
			continue
		}
		if filterEmbeddable && e.Embeddable != embeddable {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *Builder) buildTypes() {
	stringList := graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))

	b.pivotType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Pivot",
		Fields: graphql.Fields{
			"entity":             pivotField(graphql.String, func(pv *metadata.Pivot) any { return pv.Entity }),
			"table":              pivotField(graphql.String, func(pv *metadata.Pivot) any { return pv.Table }),
			"joinColumns":        pivotField(stringList, func(pv *metadata.Pivot) any { return nonNil(pv.JoinColumns) }),
			"inverseJoinColumns": pivotField(stringList, func(pv *metadata.Pivot) any { return nonNil(pv.InverseJoinColumns) }),
			"fixedOrder":         pivotField(graphql.Boolean, func(pv *metadata.Pivot) any { return pv.FixedOrder }),
			"fixedOrderColumn":   pivotField(graphql.String, func(pv *metadata.Pivot) any { return pv.FixedOrderColumn }),
		},
	})

	b.sideType = graphql.NewObject(graphql.ObjectConfig{
		Name: "PivotSide",
		Fields: graphql.Fields{
			"property":          sideField(graphql.String, func(s pivot.Side) any { return s.Property }),
			"entity":            sideField(graphql.String, func(s pivot.Side) any { return s.Entity }),
			"columns":           sideField(stringList, func(s pivot.Side) any { return nonNil(s.Columns) }),
			"referencedColumns": sideField(stringList, func(s pivot.Side) any { return nonNil(s.ReferencedColumns) }),
		},
	})

	b.classification = graphql.NewObject(graphql.ObjectConfig{
		Name: "PivotClassification",
		Fields: graphql.Fields{
			"type":       infoField(graphql.String, func(i pivot.Info) any { return i.Type.String() }),
			"left":       infoField(b.sideType, func(i pivot.Info) any { return i.Left }),
			"right":      infoField(b.sideType, func(i pivot.Info) any { return i.Right }),
			"attributes": infoField(stringList, func(i pivot.Info) any { return nonNil(i.AttributeProperties) }),
		},
	})

	b.propertyType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Property",
		Fields: graphql.Fields{
			"name":         propertyField(graphql.NewNonNull(graphql.String), func(p *metadata.Property) any { return p.Name }),
			"kind":         propertyField(graphql.NewNonNull(graphql.String), func(p *metadata.Property) any { return p.Kind.String() }),
			"type":         propertyField(graphql.String, func(p *metadata.Property) any { return p.Type }),
			"customType":   propertyField(graphql.String, func(p *metadata.Property) any { return p.CustomType }),
			"target":       propertyField(graphql.String, func(p *metadata.Property) any { return p.Target }),
			"fieldNames":   propertyField(stringList, func(p *metadata.Property) any { return nonNil(p.FieldNames) }),
			"columnTypes":  propertyField(stringList, func(p *metadata.Property) any { return nonNil(p.ColumnTypes) }),
			"primary":      propertyField(graphql.Boolean, func(p *metadata.Property) any { return p.Primary }),
			"nullable":     propertyField(graphql.Boolean, func(p *metadata.Property) any { return p.Nullable }),
			"persist":      propertyField(graphql.Boolean, func(p *metadata.Property) any { return p.Persist }),
			"version":      propertyField(graphql.Boolean, func(p *metadata.Property) any { return p.Version }),
			"inherited":    propertyField(graphql.Boolean, func(p *metadata.Property) any { return p.Inherited }),
			"owner":        propertyField(graphql.Boolean, func(p *metadata.Property) any { return p.Owner }),
			"mappedBy":     propertyField(graphql.String, func(p *metadata.Property) any { return p.MappedBy }),
			"inversedBy":   propertyField(graphql.String, func(p *metadata.Property) any { return p.InversedBy }),
			"embeddedPath": propertyField(stringList, func(p *metadata.Property) any { return nonNil(p.EmbeddedPath) }),
			"cascade": propertyField(stringList, func(p *metadata.Property) any {
				out := make([]string, len(p.Cascade))
				for i, c := range p.Cascade {
					out[i] = string(c)
				}
				return out
			}),
			"pivot": propertyField(b.pivotType, func(p *metadata.Property) any {
				if p.Pivot == nil {
					return nil
				}
				return p.Pivot
			}),
		},
	})

	b.discrEntryType = graphql.NewObject(graphql.ObjectConfig{
		Name: "DiscriminatorEntry",
		Fields: graphql.Fields{
			"value":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"entity": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	b.entityType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Entity",
		Fields: graphql.Fields{
			"id":                  entityField(graphql.NewNonNull(graphql.Int), func(e *metadata.Entity) any { return e.ID }),
			"name":                entityField(graphql.NewNonNull(graphql.String), func(e *metadata.Entity) any { return e.Name }),
			"uniqueName":          entityField(graphql.NewNonNull(graphql.String), func(e *metadata.Entity) any { return e.UniqueName }),
			"table":               entityField(graphql.String, func(e *metadata.Entity) any { return e.Table }),
			"root":                entityField(graphql.String, func(e *metadata.Entity) any { return e.Root }),
			"extends":             entityField(graphql.String, func(e *metadata.Entity) any { return e.Extends }),
			"sti":                 entityField(graphql.Boolean, func(e *metadata.Entity) any { return e.STI }),
			"abstract":            entityField(graphql.Boolean, func(e *metadata.Entity) any { return e.Abstract }),
			"embeddable":          entityField(graphql.Boolean, func(e *metadata.Entity) any { return e.Embeddable }),
			"virtual":             entityField(graphql.Boolean, func(e *metadata.Entity) any { return e.Virtual }),
			"pivot":               entityField(graphql.Boolean, func(e *metadata.Entity) any { return e.Pivot }),
			"compositeKey":        entityField(graphql.Boolean, func(e *metadata.Entity) any { return e.CompositePK() }),
			"primaryKeys":         entityField(stringList, func(e *metadata.Entity) any { return nonNil(e.PrimaryKeys) }),
			"versionProperty":     entityField(graphql.String, func(e *metadata.Entity) any { return e.VersionProperty }),
			"discriminatorColumn": entityField(graphql.String, func(e *metadata.Entity) any { return e.DiscriminatorColumn }),
			"discriminatorValue":  entityField(graphql.String, func(e *metadata.Entity) any { return e.DiscriminatorValue }),
			"discriminatorMap": entityField(graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.discrEntryType))), func(e *metadata.Entity) any {
				return discriminatorEntries(e.DiscriminatorMap)
			}),
			"comparableProperties": entityField(stringList, func(e *metadata.Entity) any {
				names := []string{}
				for _, p := range e.ComparableProperties() {
					names = append(names, p.Name)
				}
				return names
			}),
			"properties": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.propertyType))),
				Args: graphql.FieldConfigArgument{
					"persisted": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					e, ok := p.Source.(*metadata.Entity)
					if !ok {
						return nil, nil
					}
					persisted, filter := p.Args["persisted"].(bool)
					out := []*metadata.Property{}
					for _, prop := range e.Props() {
						if filter && prop.Persist != persisted {
							continue
						}
						out = append(out, prop)
					}
					return out, nil
				},
			},
			"pivotInfo": &graphql.Field{
				Type: b.classification,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					e, ok := p.Source.(*metadata.Entity)
					if !ok {
						return nil, nil
					}
					if info, found := b.pivots[e.Name]; found {
						return info, nil
					}
					return nil, nil
				},
			},
		},
	})

	b.keyPartType = graphql.NewObject(graphql.ObjectConfig{
		Name: "KeyPart",
		Fields: graphql.Fields{
			"property": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"value":    &graphql.Field{Type: graphql.String, Description: "Canonical JSON of the key value"},
		},
	})

	b.identityType = graphql.NewObject(graphql.ObjectConfig{
		Name: "Identity",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"entity": &graphql.Field{Type: graphql.NewNonNull(b.entityType)},
			"key":    &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.keyPartType)))},
		},
	})
}

type discriminatorEntry struct {
	Value  string `json:"value"`
	Entity string `json:"entity"`
}

func discriminatorEntries(m map[string]string) []discriminatorEntry {
	out := make([]discriminatorEntry, 0, len(m))
	for value, entity := range m {
		out = append(out, discriminatorEntry{Value: value, Entity: entity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

func entityField(typ graphql.Output, get func(*metadata.Entity) any) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			e, ok := p.Source.(*metadata.Entity)
			if !ok {
				return nil, nil
			}
			return get(e), nil
		},
	}
}

func propertyField(typ graphql.Output, get func(*metadata.Property) any) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			prop, ok := p.Source.(*metadata.Property)
			if !ok {
				return nil, nil
			}
			return get(prop), nil
		},
	}
}

func pivotField(typ graphql.Output, get func(*metadata.Pivot) any) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			pv, ok := p.Source.(*metadata.Pivot)
			if !ok {
				return nil, nil
			}
			return get(pv), nil
		},
	}
}

func sideField(typ graphql.Output, get func(pivot.Side) any) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			s, ok := p.Source.(pivot.Side)
			if !ok {
				return nil, nil
			}
			return get(s), nil
		},
	}
}

func infoField(typ graphql.Output, get func(pivot.Info) any) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			info, ok := p.Source.(pivot.Info)
			if !ok {
				return nil, nil
			}
			return get(info), nil
		},
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
