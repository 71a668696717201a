package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"entitymeta/internal/metadata"
	"entitymeta/internal/pivot"
	"entitymeta/internal/schemanaming"
)

// definePivots plans and registers a pivot entity for every owning many-to-many property.
// Inherited copies share the pivot of the declaring entity and inverse sides mirror it.
func (r *resolver) definePivots(context.Context) error {
	strategy := r.opts.Naming
	keys := schemanaming.NewKeys(r.reg)

	for _, e := range r.entities() {
		if e.Pivot || e.Embeddable {
			continue
		}
		for _, p := range e.Props() {
			if p.Kind != metadata.KindManyToMany || !p.Owner || r.originOf(e.Name, p.Name) != e.Name {
				continue
			}
			target, err := r.entity(p.Target)
			if err != nil {
				return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name,
					fmt.Sprintf("target %q is not declared", p.Target))
			}
			ownerKeys, err := keys.Columns(e.Name, strategy)
			if err != nil {
				return err
			}
			if len(ownerKeys) == 0 {
				return metadata.NewError(metadata.ErrMissingPrimaryKey, e.Name, "", "required by many-to-many "+p.Name)
			}
			targetKeys, err := keys.Columns(target.Name, strategy)
			if err != nil {
				return err
			}
			if len(targetKeys) == 0 {
				return metadata.NewError(metadata.ErrMissingPrimaryKey, target.Name, "", "required by many-to-many "+e.Name+"."+p.Name)
			}

			plan := pivot.Build(strategy, e, p, target, ownerKeys, targetKeys)
			p.Pivot = plan.Pivot()

			if existing, ok := r.reg.Lookup(plan.Entity); ok {
				if !existing.Pivot || existing.Table != plan.Table {
					return metadata.NewError(metadata.ErrDuplicateEntityName, plan.Entity, "",
						fmt.Sprintf("pivot of %s.%s", e.Name, p.Name))
				}
				continue
			}
			if _, err := r.reg.Add(plan.Descriptor(strategy.ReferenceColumnName())); err != nil {
				return err
			}
			r.logger.Debug("defined pivot entity",
				slog.String("entity", plan.Entity),
				slog.String("table", plan.Table),
				slog.String("owner", e.Name+"."+p.Name),
				slog.String("type", plan.Type.String()),
			)
		}
	}

	for _, e := range r.entities() {
		for _, p := range e.Props() {
			if p.Kind != metadata.KindManyToMany || !p.Owner {
				continue
			}
			origin := r.originOf(e.Name, p.Name)
			if origin == e.Name {
				continue
			}
			src, err := r.entity(origin)
			if err != nil {
				return err
			}
			if declared := src.Properties[p.Name]; declared != nil && declared.Pivot != nil {
				p.Pivot = declared.Clone().Pivot
			}
		}
	}

	for _, e := range r.entities() {
		for _, p := range e.Props() {
			if p.Kind != metadata.KindManyToMany || p.Owner {
				continue
			}
			target, err := r.entity(p.Target)
			if err != nil {
				return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name,
					fmt.Sprintf("target %q is not declared", p.Target))
			}
			owning := target.Properties[p.MappedBy]
			if owning == nil || owning.Kind != metadata.KindManyToMany {
				return &metadata.Error{
					Kind:     metadata.ErrUnknownOrWrongReferenceType,
					Entity:   e.Name,
					Property: p.Name,
					Related:  target.Name + "." + p.MappedBy,
					Detail:   "mapped_by side is not a many-to-many property",
				}
			}
			if !owning.Owner || owning.Pivot == nil {
				return &metadata.Error{
					Kind:     metadata.ErrConflictingOwnership,
					Entity:   e.Name,
					Property: p.Name,
					Related:  target.Name + "." + owning.Name,
					Detail:   "both sides declare mapped_by",
				}
			}
			p.Pivot = pivot.Mirror(owning.Pivot)
		}
	}
	return nil
}
