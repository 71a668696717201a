// Package dump renders a resolved registry for humans and tools.
//
// Both formats are deterministic: entities appear in id order and properties in
// declaration order, so dumps of the same declarations can be diffed.
package dump

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"entitymeta/internal/metadata"
	"entitymeta/internal/pivot"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatSummary = "summary"
)

type registryView struct {
	Namespace string        `json:"namespace,omitempty"`
	Entities  []*entityView `json:"entities"`
}

type entityView struct {
	*metadata.Entity
	Properties []*metadata.Property `json:"properties"`
}

// JSON renders the registry as indented JSON.
func JSON(reg *metadata.Registry) ([]byte, error) {
	view := registryView{Namespace: reg.Namespace(), Entities: []*entityView{}}
	for _, e := range reg.Entities() {
		view.Entities = append(view.Entities, &entityView{Entity: e, Properties: e.Props()})
	}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode registry: %w", err)
	}
	return append(data, '\n'), nil
}

// EntityJSON renders one descriptor the way JSON renders it inside the registry.
func EntityJSON(e *metadata.Entity) ([]byte, error) {
	data, err := json.MarshalIndent(&entityView{Entity: e, Properties: e.Props()}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity %s: %w", e.Name, err)
	}
	return append(data, '\n'), nil
}

// Summary renders one line per entity and property.
func Summary(reg *metadata.Registry) string {
	var b strings.Builder
	ns := reg.Namespace()
	if ns == "" {
		ns = "(none)"
	}
	entities := reg.Entities()
	pivots := pivot.Classify(reg)
	fmt.Fprintf(&b, "namespace: %s\n", ns)
	fmt.Fprintf(&b, "entities: %d\n", len(entities))
	for _, e := range entities {
		b.WriteString("\n")
		b.WriteString(entityLine(e))
		b.WriteString("\n")
		if info, ok := pivots[e.Name]; ok {
			b.WriteString("  ")
			b.WriteString(pivotLine(info))
			b.WriteString("\n")
		}
		for _, p := range e.Props() {
			b.WriteString("  ")
			b.WriteString(propertyLine(p))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Write renders reg to w in the given format.
func Write(w io.Writer, reg *metadata.Registry, format string) error {
	var data []byte
	switch strings.ToLower(format) {
	case "", FormatJSON:
		out, err := JSON(reg)
		if err != nil {
			return err
		}
		data = out
	case FormatSummary:
		data = []byte(Summary(reg))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write registry dump: %w", err)
	}
	return nil
}

func entityLine(e *metadata.Entity) string {
	parts := []string{e.Name, "#" + strconv.Itoa(e.ID)}
	if e.Table != "" {
		parts = append(parts, "table="+e.Table)
	}
	for _, flag := range []struct {
		set  bool
		name string
	}{
		{e.Abstract, "abstract"},
		{e.CompositePK(), "composite_key"},
		{e.Embeddable, "embeddable"},
		{e.Pivot, "pivot"},
		{e.Virtual, "virtual"},
	} {
		if flag.set {
			parts = append(parts, flag.name)
		}
	}
	if e.Extends != "" {
		parts = append(parts, "extends="+e.Extends)
	}
	if e.Root != e.Name {
		parts = append(parts, "root="+e.Root)
	}
	if e.DiscriminatorColumn != "" {
		parts = append(parts, "discriminator="+e.DiscriminatorColumn)
	}
	if e.DiscriminatorValue != "" {
		parts = append(parts, "value="+e.DiscriminatorValue)
	}
	return strings.Join(parts, " ")
}

// pivotLine describes how a pivot entity is keyed and which entities it joins.
func pivotLine(info pivot.Info) string {
	side := func(s pivot.Side) string {
		return s.Property + " -> " + s.Entity + " [" + strings.Join(s.Columns, ",") + "]"
	}
	line := "~ pivot " + strings.ToLower(info.Type.String()) + ": " + side(info.Left) + ", " + side(info.Right)
	if len(info.AttributeProperties) > 0 {
		line += " attributes=" + strings.Join(info.AttributeProperties, ",")
	}
	return line
}

func propertyLine(p *metadata.Property) string {
	parts := []string{p.Name + ":"}
	if p.Kind == metadata.KindScalar {
		parts = append(parts, p.Type)
	} else {
		parts = append(parts, p.Kind.String(), "->", p.Target)
	}
	if len(p.FieldNames) > 0 {
		parts = append(parts, "["+strings.Join(p.FieldNames, ",")+"]")
	}
	if len(p.ColumnTypes) > 0 {
		parts = append(parts, strings.Join(p.ColumnTypes, ","))
	}
	for _, flag := range []struct {
		set  bool
		name string
	}{
		{p.Primary, "pk"},
		{p.Nullable, "nullable"},
		{p.Version, "version"},
		{!p.Persist, "transient"},
		{p.Owner, "owner"},
	} {
		if flag.set {
			parts = append(parts, flag.name)
		}
	}
	if len(p.Cascade) > 0 {
		cascade := make([]string, len(p.Cascade))
		for i, c := range p.Cascade {
			cascade[i] = string(c)
		}
		parts = append(parts, "cascade="+strings.Join(cascade, ","))
	}
	if p.MappedBy != "" {
		parts = append(parts, "mapped_by="+p.MappedBy)
	}
	if p.InversedBy != "" {
		parts = append(parts, "inversed_by="+p.InversedBy)
	}
	if p.Pivot != nil {
		parts = append(parts, "pivot="+p.Pivot.Table)
	}
	return strings.Join(parts, " ")
}
