package metadata

import (
	"sort"
)

// Index is a named, ordered list of properties backing an index or unique constraint.
type Index struct {
	Name       string   `json:"name,omitempty"`
	Properties []string `json:"properties"`
}

// Key identifies the index for de-duplication.
func (i Index) Key() string {
	key := i.Name + "("
	for n, p := range i.Properties {
		if n > 0 {
			key += ","
		}
		key += p
	}
	return key + ")"
}

// Entity is the resolved descriptor of one record type.
type Entity struct {
	Name       string `json:"name"`
	Table      string `json:"table,omitempty"`
	UniqueName string `json:"uniqueName"`
	ID         int    `json:"id"`

	Properties  map[string]*Property `json:"properties"`
	PrimaryKeys []string             `json:"primaryKeys"`

	// Root is the entity's own name, or the top of its single-table inheritance hierarchy.
	Root    string `json:"root"`
	Extends string `json:"extends,omitempty"`
	// STI marks entities whose Extends link shares the parent's table.
	STI bool `json:"sti,omitempty"`

	// DiscriminatorColumn is set on every entity of an STI hierarchy; the map only on the root.
	DiscriminatorColumn string            `json:"discriminatorColumn,omitempty"`
	DiscriminatorMap    map[string]string `json:"discriminatorMap,omitempty"`
	DiscriminatorValue  string            `json:"discriminatorValue,omitempty"`

	Abstract   bool `json:"abstract,omitempty"`
	Embeddable bool `json:"embeddable,omitempty"`
	Pivot      bool `json:"pivot,omitempty"`
	Virtual    bool `json:"virtual,omitempty"`

	VersionProperty string              `json:"versionProperty,omitempty"`
	Hooks           map[string][]string `json:"hooks,omitempty"`
	Indexes         []Index             `json:"indexes,omitempty"`
	Uniques         []Index             `json:"uniques,omitempty"`

	placeholder bool
	sealed      bool
	comparable  []*Property
}

// NewEntity returns an empty descriptor rooted at itself.
func NewEntity(name string) *Entity {
	return &Entity{
		Name:       name,
		Root:       name,
		Properties: make(map[string]*Property),
		Hooks:      make(map[string][]string),
	}
}

// Props returns the properties in declaration order.
func (e *Entity) Props() []*Property {
	props := make([]*Property, 0, len(e.Properties))
	for _, p := range e.Properties {
		props = append(props, p)
	}
	sort.SliceStable(props, func(i, j int) bool {
		if props[i].Order != props[j].Order {
			return props[i].Order < props[j].Order
		}
		return props[i].Name < props[j].Name
	})
	return props
}

// Property returns the named property or nil.
func (e *Entity) Property(name string) *Property {
	return e.Properties[name]
}

// LastOrder returns the highest order index in use, or -1 for an empty entity.
func (e *Entity) LastOrder() float64 {
	last := -1.0
	for _, p := range e.Properties {
		if p.Order > last {
			last = p.Order
		}
	}
	return last
}

// AddProperty appends a property after the current last one.
func (e *Entity) AddProperty(p *Property) {
	p.Order = e.LastOrder() + 1
	e.Properties[p.Name] = p
}

// PrimaryKeyProps returns the primary key properties in key order.
func (e *Entity) PrimaryKeyProps() []*Property {
	out := make([]*Property, 0, len(e.PrimaryKeys))
	for _, name := range e.PrimaryKeys {
		if p := e.Properties[name]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// CompositePK reports whether the entity has more than one primary key property.
func (e *Entity) CompositePK() bool {
	return len(e.PrimaryKeys) > 1
}

// IsPlaceholder reports whether the descriptor was created for a forward reference
// and never backed by a declaration.
func (e *Entity) IsPlaceholder() bool {
	return e.placeholder
}

// Sealed reports whether resolution has finished for this entity.
func (e *Entity) Sealed() bool {
	return e.sealed
}

// IsComparable applies the change-detection rule to one property.
func (e *Entity) IsComparable(p *Property) bool {
	if !p.Persist {
		return false
	}
	if p.Kind.IsCollection() {
		return false
	}
	if p.Kind == KindOneToOne && !p.Owner {
		return false
	}
	if e.DiscriminatorColumn != "" && p.Name == e.DiscriminatorColumn {
		return false
	}
	if p.Version || (e.VersionProperty != "" && p.Name == e.VersionProperty) {
		return false
	}
	return true
}

// ComparableProperties returns the properties that take part in snapshots and diffs,
// in declaration order. The result is cached once the entity is sealed.
func (e *Entity) ComparableProperties() []*Property {
	if e.sealed && e.comparable != nil {
		return e.comparable
	}
	var out []*Property
	for _, p := range e.Props() {
		if e.IsComparable(p) {
			out = append(out, p)
		}
	}
	if e.sealed {
		e.comparable = out
	}
	return out
}

// Seal marks the entity read-only and caches its comparable properties.
func (e *Entity) Seal() {
	e.sealed = true
	e.comparable = nil
	e.comparable = e.ComparableProperties()
	if e.comparable == nil {
		e.comparable = []*Property{}
	}
}
