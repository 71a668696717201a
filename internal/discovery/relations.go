package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"entitymeta/internal/metadata"
	"entitymeta/internal/schemanaming"
)

// versionTypes are the logical types able to hold an optimistic lock version.
var versionTypes = map[string]bool{
	"number":      true,
	"int":         true,
	"integer":     true,
	"smallint":    true,
	"bigint":      true,
	"datetime":    true,
	"timestamp":   true,
	"timestamptz": true,
}

// applyDefaults derives relation ownership and default cascades, and checks version properties.
func (r *resolver) applyDefaults(context.Context) error {
	for _, e := range r.entities() {
		var versions []*metadata.Property
		for _, p := range e.Props() {
			switch p.Kind {
			case metadata.KindManyToOne:
				p.Owner = true
			case metadata.KindOneToOne:
				p.Owner = p.MappedBy == ""
			case metadata.KindManyToMany:
				p.Owner = p.InversedBy != "" || p.MappedBy == ""
			case metadata.KindOneToMany:
				p.Owner = false
				if p.MappedBy == "" {
					return metadata.NewError(metadata.ErrMissingRequiredOption, e.Name, p.Name, "1:m relation requires mapped_by")
				}
			}
			if p.Kind.IsRelation() && len(p.Cascade) == 0 {
				p.Cascade = []metadata.Cascade{metadata.CascadePersist}
			}
			if p.Version {
				versions = append(versions, p)
			}
		}

		switch len(versions) {
		case 0:
		case 1:
			v := versions[0]
			if !versionTypeAllowed(v.Type) {
				return metadata.NewError(metadata.ErrInvalidVersionField, e.Name, v.Name,
					fmt.Sprintf("type %q cannot hold a version", v.Type))
			}
			e.VersionProperty = v.Name
		default:
			return metadata.NewError(metadata.ErrInvalidVersionField, e.Name, versions[1].Name,
				fmt.Sprintf("%s already declares version property %q", e.Name, versions[0].Name))
		}
	}
	return nil
}

func versionTypeAllowed(typeName string) bool {
	t := strings.ToLower(strings.TrimSpace(typeName))
	if idx := strings.Index(t, "("); idx != -1 {
		t = t[:idx]
	}
	return versionTypes[t]
}

func (r *resolver) deriveFieldNames(context.Context) error {
	return schemanaming.Apply(r.reg, r.opts.Naming)
}

// wireInverseSides back-fills InversedBy on owning sides that are only referenced
// through MappedBy.
func (r *resolver) wireInverseSides(context.Context) error {
	for _, e := range r.entities() {
		for _, p := range e.Props() {
			if !p.Kind.IsRelation() || p.MappedBy == "" {
				continue
			}
			target, err := r.entity(p.Target)
			if err != nil {
				return metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, e.Name, p.Name,
					fmt.Sprintf("target %q is not declared", p.Target))
			}
			owning := target.Properties[p.MappedBy]
			if owning == nil || !owning.Kind.IsRelation() {
				return &metadata.Error{
					Kind:     metadata.ErrUnknownOrWrongReferenceType,
					Entity:   e.Name,
					Property: p.Name,
					Related:  target.Name + "." + p.MappedBy,
					Detail:   "mapped_by side does not exist",
				}
			}
			if owning.MappedBy != "" {
				return &metadata.Error{
					Kind:     metadata.ErrConflictingOwnership,
					Entity:   e.Name,
					Property: p.Name,
					Related:  target.Name + "." + owning.Name,
					Detail:   "both sides declare mapped_by",
				}
			}
			if owning.InversedBy == "" {
				owning.InversedBy = p.Name
				r.logger.Debug("wired inverse side",
					slog.String("owner", target.Name+"."+owning.Name),
					slog.String("inverse", e.Name+"."+p.Name),
				)
			}
		}
	}
	return nil
}

// resolveColumnTypes maps logical types to platform column types. Owning references take
// the column types of the target's primary key.
func (r *resolver) resolveColumnTypes(context.Context) error {
	pf := r.opts.Platform
	for _, e := range r.entities() {
		for _, p := range e.Props() {
			switch {
			case p.Kind == metadata.KindScalar && p.Persist:
				p.ColumnTypes = []string{pf.ColumnTypeFor(p.Type)}
			case p.Kind == metadata.KindEmbedded && !p.IsInlineEmbed() && p.Persist:
				p.ColumnTypes = []string{pf.ColumnTypeFor("json")}
			}
		}
	}

	for _, e := range r.entities() {
		for _, p := range e.Props() {
			if !p.Kind.IsReference() || !p.Owner || len(p.ColumnTypes) > 0 {
				continue
			}
			types, err := r.keyColumnTypes(p.Target, make(map[string]bool))
			if err != nil {
				return err
			}
			p.ColumnTypes = types
		}
	}
	return nil
}

func (r *resolver) keyColumnTypes(entity string, visiting map[string]bool) ([]string, error) {
	if visiting[entity] {
		return nil, metadata.NewError(metadata.ErrUnknownOrWrongReferenceType, entity, "", "circular primary key reference")
	}
	visiting[entity] = true
	e, err := r.entity(entity)
	if err != nil {
		return nil, err
	}
	var types []string
	for _, pk := range e.PrimaryKeyProps() {
		if pk.Kind.IsReference() {
			nested, err := r.keyColumnTypes(pk.Target, visiting)
			if err != nil {
				return nil, err
			}
			types = append(types, nested...)
			continue
		}
		types = append(types, r.opts.Platform.ColumnTypeFor(pk.Type))
	}
	return types, nil
}
