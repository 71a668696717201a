// Package discovery resolves raw entity declarations into a sealed metadata registry.
//
// Resolution runs a fixed pipeline: registration, base-property inheritance, single-table
// inheritance, relation defaults, field names, pivot synthesis, embedded flattening,
// inverse-side wiring, column types and validation. The first error stops it and no
// partial registry is returned.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"entitymeta/internal/metadata"
	"entitymeta/internal/naming"
	"entitymeta/internal/observability"
	"entitymeta/internal/platform"
)

// Embedded prefix modes.
const (
	// PrefixRelative chains nested prefixes: "address_" + "geo_" + "lat".
	PrefixRelative = "relative"
	// PrefixAbsolute uses an explicit nested prefix as-is.
	PrefixAbsolute = "absolute"
)

// Options configures a resolution run.
type Options struct {
	// Namespace prefixes entity unique names.
	Namespace string
	Naming    naming.Strategy
	Platform  platform.Platform
	Types     *platform.Types
	// EmbeddedSeparator joins an embedded property's name with its children. Defaults to "_".
	EmbeddedSeparator  string
	EmbeddedPrefixMode string
	Logger             *slog.Logger
	Metrics            *observability.ResolutionMetrics
}

func (o Options) withDefaults() (Options, error) {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Naming == nil {
		o.Naming = naming.New(naming.DefaultConfig(), o.Logger)
	}
	if o.Platform == nil {
		p, err := platform.NewGeneric("")
		if err != nil {
			return o, err
		}
		o.Platform = p
	}
	if o.Types == nil {
		o.Types = platform.NewTypes()
	}
	if o.EmbeddedSeparator == "" {
		o.EmbeddedSeparator = "_"
	}
	if o.EmbeddedPrefixMode == "" {
		o.EmbeddedPrefixMode = PrefixRelative
	}
	return o, nil
}

// Resolve turns declarations into a sealed registry.
func Resolve(ctx context.Context, decls []metadata.EntityDeclaration, opts Options) (*metadata.Registry, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "discovery.resolve",
		attribute.Int("declarations", len(decls)),
		attribute.String("platform", opts.Platform.Name()),
	)
	defer span.End()

	start := time.Now()
	r := newResolver(opts)
	if err := r.run(ctx, decls); err != nil {
		recordSpanError(span, err)
		opts.Metrics.RecordResolution(ctx, time.Since(start), 0, errorKind(err))
		return nil, err
	}

	r.reg.Seal()
	opts.Metrics.RecordResolution(ctx, time.Since(start), r.reg.Len(), "")
	span.SetAttributes(attribute.Int("entities", r.reg.Len()))
	opts.Logger.Info("metadata resolved",
		slog.Int("entities", r.reg.Len()),
		slog.String("namespace", opts.Namespace),
		slog.Duration("duration", time.Since(start)),
	)
	return r.reg, nil
}

// ResolveDocument resolves a declaration document. The document namespace is used
// unless opts sets one.
func ResolveDocument(ctx context.Context, doc metadata.Document, opts Options) (*metadata.Registry, error) {
	if opts.Namespace == "" {
		opts.Namespace = doc.Namespace
	}
	return Resolve(ctx, doc.Entities, opts)
}

type step struct {
	name string
	fn   func(ctx context.Context) error
}

type resolver struct {
	opts   Options
	reg    *metadata.Registry
	logger *slog.Logger

	decls map[string]*metadata.EntityDeclaration
	order []string
	// origin maps "Entity.prop" to the entity that declared the property.
	origin   map[string]string
	stiRoots map[string]bool
}

func newResolver(opts Options) *resolver {
	return &resolver{
		opts:     opts,
		reg:      metadata.NewRegistry(opts.Namespace),
		logger:   opts.Logger,
		decls:    make(map[string]*metadata.EntityDeclaration),
		origin:   make(map[string]string),
		stiRoots: make(map[string]bool),
	}
}

func (r *resolver) run(ctx context.Context, decls []metadata.EntityDeclaration) error {
	steps := []step{
		{"discovery.register", func(context.Context) error { return r.register(decls) }},
		{"discovery.base_properties", r.inheritBaseProperties},
		{"discovery.single_table", r.singleTableInheritance},
		{"discovery.defaults", r.applyDefaults},
		{"discovery.field_names", r.deriveFieldNames},
		{"discovery.pivots", r.definePivots},
		{"discovery.embedded", r.flattenEmbedded},
		{"discovery.wiring", r.wireInverseSides},
		{"discovery.column_types", r.resolveColumnTypes},
		{"discovery.validate", r.validate},
	}
	for _, s := range steps {
		stepCtx, span := startSpan(ctx, s.name)
		err := s.fn(stepCtx)
		if err != nil {
			recordSpanError(span, err)
			span.End()
			r.logger.Debug("metadata resolution step failed", slog.String("step", s.name), slog.String("error", err.Error()))
			return err
		}
		span.End()
		r.logger.Debug("metadata resolution step finished", slog.String("step", s.name), slog.Int("entities", r.reg.Len()))
	}
	return nil
}

// entities returns declared entities in declaration order, followed by synthesized ones.
// Placeholder replacement can leave ids out of declaration order.
func (r *resolver) entities() []*metadata.Entity {
	out := make([]*metadata.Entity, 0, r.reg.Len())
	declared := make(map[string]bool, len(r.order))
	for _, name := range r.order {
		if e, ok := r.reg.Lookup(name); ok {
			out = append(out, e)
			declared[name] = true
		}
	}
	for _, e := range r.reg.Entities() {
		if !declared[e.Name] {
			out = append(out, e)
		}
	}
	return out
}

func (r *resolver) entity(name string) (*metadata.Entity, error) {
	e, ok := r.reg.Lookup(name)
	if !ok || e.IsPlaceholder() {
		return nil, metadata.NewError(metadata.ErrUnknownEntity, name, "", "")
	}
	return e, nil
}

func (r *resolver) originOf(entity, prop string) string {
	if o, ok := r.origin[entity+"."+prop]; ok {
		return o
	}
	return entity
}

func (r *resolver) setOrigin(entity, prop, origin string) {
	r.origin[entity+"."+prop] = origin
}

var errorKinds = []error{
	metadata.ErrMissingPrimaryKey,
	metadata.ErrUnknownOrWrongReferenceType,
	metadata.ErrConflictingOwnership,
	metadata.ErrConflictingPropertyName,
	metadata.ErrDuplicateEntityName,
	metadata.ErrUnknownBaseEntity,
	metadata.ErrInvalidVersionField,
	metadata.ErrMissingRequiredOption,
	metadata.ErrInvalidDiscriminatorMap,
	metadata.ErrUnknownEntity,
}

func errorKind(err error) string {
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "other"
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("entitymeta/discovery")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
