package discovery

import (
	"context"
	"fmt"

	"entitymeta/internal/metadata"
)

// validate re-checks the registry invariants. It stops at the first violation.
func (r *resolver) validate(context.Context) error {
	for _, e := range r.entities() {
		if err := r.validatePrimaryKey(e); err != nil {
			return err
		}
		for _, p := range e.Props() {
			if err := r.validateProperty(e, p); err != nil {
				return err
			}
		}
	}
	for _, name := range r.order {
		if r.stiRoots[name] && r.stiRootOf(name) == name {
			root, err := r.entity(name)
			if err != nil {
				return err
			}
			if err := r.validateDiscriminatorMap(root); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolver) validatePrimaryKey(e *metadata.Entity) error {
	if e.Abstract || e.Embeddable || e.Virtual {
		return nil
	}
	if len(e.PrimaryKeys) == 0 {
		return metadata.NewError(metadata.ErrMissingPrimaryKey, e.Name, "", "")
	}
	for _, name := range e.PrimaryKeys {
		if e.Properties[name] == nil {
			return metadata.NewError(metadata.ErrMissingPrimaryKey, e.Name, name, "primary key is not a property")
		}
	}
	return nil
}

func (r *resolver) validateProperty(e *metadata.Entity, p *metadata.Property) error {
	if p.Kind == metadata.KindScalar {
		return nil
	}
	target, ok := r.reg.Lookup(p.Target)
	if !ok || target.IsPlaceholder() {
		return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name,
			fmt.Sprintf("target %q is not declared", p.Target))
	}
	if p.Kind == metadata.KindEmbedded {
		if !target.Embeddable {
			return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name,
				fmt.Sprintf("%s is not embeddable", target.Name))
		}
		return nil
	}
	if target.Embeddable {
		return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name,
			fmt.Sprintf("relation cannot target embeddable %s", target.Name))
	}

	if p.InversedBy != "" {
		other := target.Properties[p.InversedBy]
		related := target.Name + "." + p.InversedBy
		switch {
		case other == nil || !other.Kind.IsRelation():
			return relationError(metadata.ErrUnknownOrWrongReferenceType, e, p, related, "inversed_by side does not exist")
		case !r.inHierarchy(other.Target, e):
			return relationError(metadata.ErrUnknownOrWrongReferenceType, e, p, related,
				fmt.Sprintf("inversed_by side targets %s", other.Target))
		case other.InversedBy != "":
			return relationError(metadata.ErrConflictingOwnership, e, p, related, "both sides declare inversed_by")
		}
		if p.Kind == metadata.KindManyToMany {
			if err := validatePivotMirror(e, p, other, related); err != nil {
				return err
			}
		}
	}

	if p.MappedBy != "" {
		other := target.Properties[p.MappedBy]
		related := target.Name + "." + p.MappedBy
		switch {
		case other == nil || !other.Kind.IsRelation():
			return relationError(metadata.ErrUnknownOrWrongReferenceType, e, p, related, "mapped_by side does not exist")
		case !r.inHierarchy(other.Target, e):
			return relationError(metadata.ErrUnknownOrWrongReferenceType, e, p, related,
				fmt.Sprintf("mapped_by side targets %s", other.Target))
		case other.MappedBy != "":
			return relationError(metadata.ErrConflictingOwnership, e, p, related, "both sides declare mapped_by")
		}
	}

	if p.Kind == metadata.KindManyToMany && p.Pivot == nil {
		return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name, "many-to-many relation has no pivot")
	}
	return nil
}

// validatePivotMirror checks that the inverse side's pivot swaps the owner's column lists.
func validatePivotMirror(e *metadata.Entity, owner, inverse *metadata.Property, related string) error {
	if owner.Pivot == nil || inverse.Pivot == nil {
		return relationError(metadata.ErrConflictingOwnership, e, owner, related, "pivot missing on one side")
	}
	if owner.Pivot.Entity != inverse.Pivot.Entity ||
		!samePath(owner.Pivot.JoinColumns, inverse.Pivot.InverseJoinColumns) ||
		!samePath(owner.Pivot.InverseJoinColumns, inverse.Pivot.JoinColumns) {
		return relationError(metadata.ErrConflictingOwnership, e, owner, related, "pivot columns do not mirror")
	}
	return nil
}

// inHierarchy reports whether target names e, one of its base entities or its single-table root.
func (r *resolver) inHierarchy(target string, e *metadata.Entity) bool {
	if target == e.Name || target == e.Root {
		return true
	}
	seen := make(map[string]bool)
	for cur := e.Extends; cur != "" && !seen[cur]; {
		if cur == target {
			return true
		}
		seen[cur] = true
		parent, ok := r.reg.Lookup(cur)
		if !ok {
			return false
		}
		cur = parent.Extends
	}
	return false
}

// validateDiscriminatorMap checks the map is a bijection onto the concrete hierarchy members.
func (r *resolver) validateDiscriminatorMap(root *metadata.Entity) error {
	concrete := make(map[string]bool)
	if !root.Abstract {
		concrete[root.Name] = true
	}
	for _, m := range r.hierarchyMembers(root) {
		if !m.Abstract {
			concrete[m.Name] = true
		}
	}

	seen := make(map[string]string, len(root.DiscriminatorMap))
	for value, entity := range root.DiscriminatorMap {
		if !concrete[entity] {
			return &metadata.Error{
				Kind:    metadata.ErrInvalidDiscriminatorMap,
				Entity:  root.Name,
				Related: entity,
				Detail:  fmt.Sprintf("value %q does not map to a concrete member", value),
			}
		}
		if other, ok := seen[entity]; ok {
			return &metadata.Error{
				Kind:    metadata.ErrInvalidDiscriminatorMap,
				Entity:  root.Name,
				Related: entity,
				Detail:  fmt.Sprintf("values %q and %q map to the same entity", other, value),
			}
		}
		seen[entity] = value
	}
	for _, name := range r.entityNames(concrete) {
		if _, ok := seen[name]; !ok {
			return &metadata.Error{
				Kind:    metadata.ErrInvalidDiscriminatorMap,
				Entity:  root.Name,
				Related: name,
				Detail:  "concrete member has no discriminator value",
			}
		}
	}
	return nil
}

// entityNames returns the names in set in declaration order.
func (r *resolver) entityNames(set map[string]bool) []string {
	var out []string
	for _, name := range r.order {
		if set[name] {
			out = append(out, name)
		}
	}
	return out
}

func relationError(kind error, e *metadata.Entity, p *metadata.Property, related, detail string) error {
	return &metadata.Error{
		Kind:     kind,
		Entity:   e.Name,
		Property: p.Name,
		Related:  related,
		Detail:   detail,
	}
}
