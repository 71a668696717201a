package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"entitymeta/internal/metadata"
	"entitymeta/internal/setutil"
)

const defaultDiscriminatorColumn = "discr"

// inheritBaseProperties copies parent properties into every entity that extends another.
// Parents are merged before their children so grandparent properties arrive too.
func (r *resolver) inheritBaseProperties(context.Context) error {
	done := make(map[string]bool, len(r.order))
	visiting := make(map[string]bool)

	var merge func(name string) error
	merge = func(name string) error {
		if done[name] {
			return nil
		}
		if visiting[name] {
			return metadata.NewError(metadata.ErrUnknownBaseEntity, name, "", "circular extends")
		}
		visiting[name] = true
		defer delete(visiting, name)

		e, err := r.entity(name)
		if err != nil {
			return err
		}
		if e.Extends != "" {
			if err := merge(e.Extends); err != nil {
				return err
			}
			parent, err := r.entity(e.Extends)
			if err != nil {
				return metadata.NewError(metadata.ErrUnknownBaseEntity, e.Name, "", fmt.Sprintf("extends %q", e.Extends))
			}
			r.mergeParent(e, parent)
		}
		done[name] = true
		return nil
	}

	for _, name := range r.order {
		if err := merge(name); err != nil {
			return err
		}
	}
	return nil
}

// mergeParent adds the parent's properties the child does not override. They are
// ordered after the child's own properties using fractional indices.
func (r *resolver) mergeParent(child, parent *metadata.Entity) {
	var missing []*metadata.Property
	for _, p := range parent.Props() {
		if _, ok := child.Properties[p.Name]; !ok {
			missing = append(missing, p)
		}
	}

	last := child.LastOrder()
	n := float64(len(missing))
	for i, p := range missing {
		c := p.Clone()
		c.Order = last + float64(i+1)/(n+1)
		child.Properties[c.Name] = c
		r.setOrigin(child.Name, c.Name, r.originOf(parent.Name, p.Name))
	}

	if len(child.PrimaryKeys) == 0 {
		child.PrimaryKeys = cloneStrings(parent.PrimaryKeys)
	}
	child.Hooks = setutil.MergeLists(parent.Hooks, child.Hooks)
	child.Indexes = setutil.UnionBy(metadata.Index.Key, parent.Indexes, child.Indexes)
	child.Uniques = setutil.UnionBy(metadata.Index.Key, parent.Uniques, child.Uniques)

	if len(missing) > 0 {
		r.logger.Debug("merged base entity properties",
			slog.String("entity", child.Name),
			slog.String("base", parent.Name),
			slog.Int("properties", len(missing)),
		)
	}
}

// stiRootOf returns the topmost single-table root above name, or "".
func (r *resolver) stiRootOf(name string) string {
	root := ""
	seen := make(map[string]bool)
	for cur := name; cur != "" && !seen[cur]; {
		seen[cur] = true
		if r.stiRoots[cur] {
			root = cur
		}
		d, ok := r.decls[cur]
		if !ok {
			break
		}
		cur = strings.TrimSpace(d.Extends)
	}
	return root
}

// singleTableInheritance links hierarchy members to their root, accumulates every
// member property on the root and builds the discriminator map.
func (r *resolver) singleTableInheritance(context.Context) error {
	for _, name := range r.order {
		root := r.stiRootOf(name)
		if root == "" {
			continue
		}
		e, err := r.entity(name)
		if err != nil {
			return err
		}
		e.Root = root
		e.STI = name != root
	}

	for _, name := range r.order {
		if !r.stiRoots[name] || r.stiRootOf(name) != name {
			continue
		}
		root, err := r.entity(name)
		if err != nil {
			return err
		}
		if err := r.buildHierarchy(root); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) hierarchyMembers(root *metadata.Entity) []*metadata.Entity {
	var members []*metadata.Entity
	for _, e := range r.entities() {
		if e.STI && e.Root == root.Name {
			members = append(members, e)
		}
	}
	return members
}

func (r *resolver) buildHierarchy(root *metadata.Entity) error {
	members := r.hierarchyMembers(root)
	if root.DiscriminatorColumn == "" {
		root.DiscriminatorColumn = defaultDiscriminatorColumn
	}

	for _, m := range members {
		for _, p := range m.Props() {
			if _, ok := root.Properties[p.Name]; ok {
				continue
			}
			c := p.Clone()
			c.Nullable = true
			c.Inherited = true
			c.Primary = false
			root.AddProperty(c)
			r.setOrigin(root.Name, c.Name, r.originOf(m.Name, p.Name))
		}
	}

	values := make(map[string]string)
	if len(root.DiscriminatorMap) > 0 {
		inHierarchy := map[string]bool{root.Name: true}
		for _, m := range members {
			inHierarchy[m.Name] = true
		}
		for value, entity := range root.DiscriminatorMap {
			if !inHierarchy[entity] {
				return &metadata.Error{
					Kind:    metadata.ErrInvalidDiscriminatorMap,
					Entity:  root.Name,
					Related: entity,
					Detail:  fmt.Sprintf("discriminator value %q maps outside the hierarchy", value),
				}
			}
			values[value] = entity
		}
	} else {
		concrete := make([]*metadata.Entity, 0, len(members)+1)
		if !root.Abstract {
			concrete = append(concrete, root)
		}
		for _, m := range members {
			if !m.Abstract {
				concrete = append(concrete, m)
			}
		}
		for _, e := range concrete {
			value := e.DiscriminatorValue
			if value == "" {
				value = r.opts.Naming.ClassToTableName(e.Name)
			}
			if other, ok := values[value]; ok && other != e.Name {
				return &metadata.Error{
					Kind:    metadata.ErrInvalidDiscriminatorMap,
					Entity:  e.Name,
					Related: other,
					Detail:  fmt.Sprintf("discriminator value %q is used twice", value),
				}
			}
			values[value] = e.Name
		}
	}
	root.DiscriminatorMap = values

	reverse := make(map[string]string, len(values))
	for value, entity := range values {
		reverse[entity] = value
	}
	for _, e := range append([]*metadata.Entity{root}, members...) {
		e.DiscriminatorColumn = root.DiscriminatorColumn
		e.DiscriminatorValue = reverse[e.Name]
		if e != root {
			e.DiscriminatorMap = nil
		}
	}

	r.ensureDiscriminatorProperty(root, values)
	for _, m := range members {
		if _, ok := m.Properties[root.DiscriminatorColumn]; !ok {
			m.AddProperty(root.Properties[root.DiscriminatorColumn].Clone())
		}
	}
	return nil
}

func (r *resolver) ensureDiscriminatorProperty(root *metadata.Entity, values map[string]string) {
	column := root.DiscriminatorColumn
	if _, ok := root.Properties[column]; ok {
		return
	}
	items := make([]string, 0, len(values))
	for value := range values {
		items = append(items, value)
	}
	sort.Strings(items)
	root.AddProperty(&metadata.Property{
		Name:       column,
		Kind:       metadata.KindScalar,
		Type:       "string",
		FieldNames: []string{column},
		Enum:       true,
		Items:      items,
		Persist:    true,
	})
}
