package compiled

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"entitymeta/internal/metadata"
	"entitymeta/internal/observability"
	"entitymeta/internal/platform"
)

type options struct {
	platform platform.Platform
	types    *platform.Types
	metrics  *observability.CompiledMetrics
	logger   *slog.Logger
}

// Option configures a Cache or an Interpreter.
type Option func(*options)

// WithPlatform sets the platform used for date normalization and timezone parsing.
func WithPlatform(p platform.Platform) Option {
	return func(o *options) { o.platform = p }
}

// WithTypes sets the custom type registry. It should be the one the registry was resolved with.
func WithTypes(t *platform.Types) Option {
	return func(o *options) { o.types = t }
}

// WithMetrics records cache and function metrics.
func WithMetrics(m *observability.CompiledMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger for build events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.platform == nil {
		// The default config always parses.
		p, err := platform.New(platform.DefaultConfig())
		if err != nil {
			panic(err)
		}
		o.platform = p
	}
	if o.types == nil {
		o.types = platform.NewTypes()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Cache builds the functions of each entity on first use and keeps them for the
// lifetime of the registry.
type Cache struct {
	tk      *toolkit
	metrics *observability.CompiledMetrics
	logger  *slog.Logger

	mu        sync.Mutex
	functions map[string]*Functions
}

// NewCache returns an empty cache over a sealed registry.
func NewCache(reg *metadata.Registry, opts ...Option) *Cache {
	o := newOptions(opts)
	c := &Cache{
		metrics:   o.metrics,
		logger:    o.logger,
		functions: make(map[string]*Functions),
	}
	c.tk = &toolkit{reg: reg, platform: o.platform, types: o.types, link: c}
	return c
}

// Functions returns the compiled functions of the named entity, building them on first use.
// Concurrent first calls may build twice; the first stored result wins.
func (c *Cache) Functions(name string) (*Functions, error) {
	c.mu.Lock()
	fn, ok := c.functions[name]
	c.mu.Unlock()
	if ok {
		c.metrics.RecordCacheHit(context.Background(), "all", name)
		return fn, nil
	}

	e, err := c.tk.reg.Get(name)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	built := build(c.tk, e)
	duration := time.Since(start)

	c.mu.Lock()
	if existing, ok := c.functions[name]; ok {
		built = existing
	} else {
		c.functions[name] = built
	}
	c.mu.Unlock()

	c.metrics.RecordBuild(context.Background(), "all", name, duration)
	c.logger.Debug("compiled functions built",
		slog.String("entity", name),
		slog.Duration("duration", duration),
	)
	return built, nil
}

// Len returns the number of entities with compiled functions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.functions)
}

// PrimaryKey extracts the primary key of rec.
func (c *Cache) PrimaryKey(entity string, rec Record) (any, bool, error) {
	fn, err := c.Functions(entity)
	if err != nil {
		return nil, false, err
	}
	key, ok := fn.PrimaryKey(rec)
	return key, ok, nil
}

// Snapshot returns a detached copy of the comparable properties of rec.
func (c *Cache) Snapshot(entity string, rec Record) (Record, error) {
	fn, err := c.Functions(entity)
	if err != nil {
		return nil, err
	}
	return fn.Snapshot(rec), nil
}

// Diff compares two snapshots of entity.
func (c *Cache) Diff(entity string, last, current Record) (Record, error) {
	fn, err := c.Functions(entity)
	if err != nil {
		return nil, err
	}
	changes := fn.Diff(last, current)
	c.metrics.RecordDiff(context.Background(), entity, len(changes) > 0)
	return changes, nil
}

// MapRow converts a raw row of entity.
func (c *Cache) MapRow(entity string, row Row) (Record, error) {
	fn, err := c.Functions(entity)
	if err != nil {
		return nil, err
	}
	rec := fn.MapRow(row)
	c.metrics.RecordRowsMapped(context.Background(), entity, 1)
	return rec, nil
}

func (c *Cache) primaryKeyOf(entity string, rec Record) (any, bool) {
	fn, err := c.Functions(entity)
	if err != nil {
		return nil, false
	}
	return fn.PrimaryKey(rec)
}

func (c *Cache) nestedSnapshotOf(entity string, v any) any {
	fn, err := c.Functions(entity)
	if err != nil {
		return deepCopy(v)
	}
	return fn.nested(v)
}

func (c *Cache) mapRowOf(entity string, row Row) Record {
	fn, err := c.Functions(entity)
	if err != nil {
		return Record(row)
	}
	return fn.MapRow(row)
}
