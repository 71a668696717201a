package discovery

import (
	"context"
	"fmt"
	"math"

	"entitymeta/internal/metadata"
)

// flattenEmbedded copies the persisted properties of embeddables into their owners.
// Embeddables are flattened before use so nested embeds arrive already expanded.
func (r *resolver) flattenEmbedded(context.Context) error {
	done := make(map[string]bool)
	visiting := make(map[string]bool)

	var flatten func(e *metadata.Entity) error
	flatten = func(e *metadata.Entity) error {
		if done[e.Name] {
			return nil
		}
		if visiting[e.Name] {
			return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, "", "circular embedding")
		}
		visiting[e.Name] = true
		defer delete(visiting, e.Name)

		for _, p := range e.Props() {
			if p.Kind != metadata.KindEmbedded || p.IsFlattened() {
				continue
			}
			target, err := r.entity(p.Target)
			if err != nil {
				return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name,
					fmt.Sprintf("target %q is not declared", p.Target))
			}
			if !target.Embeddable {
				return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name,
					fmt.Sprintf("%s is not embeddable", target.Name))
			}
			if err := flatten(target); err != nil {
				return err
			}
			if err := r.embed(e, p, target); err != nil {
				return err
			}
		}
		done[e.Name] = true
		return nil
	}

	for _, e := range r.entities() {
		if err := flatten(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) embed(owner *metadata.Entity, parent *metadata.Property, embeddable *metadata.Entity) error {
	strategy := r.opts.Naming
	prefix := parent.Name + r.opts.EmbeddedSeparator
	if parent.Prefix != nil {
		prefix = *parent.Prefix
	}

	var children []*metadata.Property
	for _, c := range embeddable.Props() {
		if c.Persist {
			children = append(children, c)
		}
	}
	step := (nextOrder(owner, parent.Order) - parent.Order) / float64(len(children)+1)
	inline := parent.IsInlineEmbed()

	for i, child := range children {
		name := prefix + child.Name
		path := []string{parent.Name}
		if child.IsFlattened() {
			path = append(path, child.EmbeddedPath...)
			if r.opts.EmbeddedPrefixMode == PrefixAbsolute {
				if nested := embeddable.Properties[child.EmbeddedPath[0]]; nested != nil && nested.Prefix != nil {
					name = child.Name
				}
			}
		} else {
			path = append(path, child.Name)
		}

		if existing, ok := owner.Properties[name]; ok {
			if samePath(existing.EmbeddedPath, path) {
				continue
			}
			return &metadata.Error{
				Kind:     metadata.ErrConflictingPropertyName,
				Entity:   owner.Name,
				Property: name,
				Related:  embeddable.Name + "." + child.Name,
				Detail:   "embedded via " + owner.Name + "." + parent.Name,
			}
		}

		c := child.Clone()
		c.Name = name
		c.EmbeddedPath = path
		c.Nullable = child.Nullable || parent.Nullable
		c.Primary = false
		c.Order = parent.Order + step*float64(i+1)
		c.FieldNames = nil
		switch {
		case c.Kind.IsReference() && c.Owner:
			for _, ref := range c.ReferencedColumnNames {
				c.FieldNames = append(c.FieldNames, strategy.JoinKeyColumnName(name, ref))
			}
			c.JoinColumns = cloneStrings(c.FieldNames)
		case c.Kind == metadata.KindScalar, c.Kind == metadata.KindEmbedded:
			c.FieldNames = []string{strategy.PropertyToColumnName(name)}
		}
		if !inline {
			c.Persist = false
		}
		owner.Properties[name] = c
	}

	if inline {
		parent.Persist = false
	}
	return nil
}

// nextOrder returns the smallest order index above after, or after+1.
func nextOrder(e *metadata.Entity, after float64) float64 {
	next := math.Inf(1)
	for _, p := range e.Properties {
		if p.Order > after && p.Order < next {
			next = p.Order
		}
	}
	if math.IsInf(next, 1) {
		return after + 1
	}
	return next
}

func samePath(a, b []string) bool {
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
