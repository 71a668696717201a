// Package bootstrap resolves declarations exactly once and owns the resulting registry
// and compiled function cache.
package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"entitymeta/internal/compiled"
	"entitymeta/internal/discovery"
	"entitymeta/internal/dump"
	"entitymeta/internal/logging"
	"entitymeta/internal/metadata"
	"entitymeta/internal/naming"
	"entitymeta/internal/observability"
	"entitymeta/internal/platform"
)

// ErrAlreadyResolved is returned when Resolve is called on a runtime that already ran.
// A new registry needs a new Runtime, since compiled functions are never invalidated.
var ErrAlreadyResolved = errors.New("metadata already resolved")

// ErrNotResolved is returned by accessors before a successful resolution.
var ErrNotResolved = errors.New("metadata not resolved")

// Snapshot is the immutable result of a resolution.
type Snapshot struct {
	Registry    *metadata.Registry
	Cache       *compiled.Cache
	Platform    platform.Platform
	BuiltAt     time.Time
	Fingerprint string
}

// Config controls a resolution run.
type Config struct {
	Namespace          string
	Naming             naming.Config
	Platform           platform.Platform
	Types              *platform.Types
	EmbeddedSeparator  string
	EmbeddedPrefixMode string
	Logger             *logging.Logger
	ResolutionMetrics  *observability.ResolutionMetrics
	CompiledMetrics    *observability.CompiledMetrics
}

// Runtime runs resolution once. It is safe for concurrent use.
type Runtime struct {
	cfg    Config
	logger *logging.Logger

	once   sync.Once
	ran    atomic.Bool
	active atomic.Pointer[Snapshot]
	err    error
}

// New returns a runtime that has not resolved anything yet.
func New(cfg Config) (*Runtime, error) {
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	if cfg.Platform == nil {
		p, err := platform.New(platform.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create default platform: %w", err)
		}
		cfg.Platform = p
	}
	if cfg.Types == nil {
		cfg.Types = platform.NewTypes()
	}
	return &Runtime{
		cfg:    cfg,
		logger: cfg.Logger.WithFields(slog.String("component", "bootstrap")),
	}, nil
}

// Resolve resolves doc and builds an empty compiled cache over the sealed registry.
// Only the first call resolves. Every other call gets ErrAlreadyResolved once the
// first one has finished.
func (r *Runtime) Resolve(ctx context.Context, doc metadata.Document) (*Snapshot, error) {
	first := false
	r.once.Do(func() {
		first = true
		r.err = r.resolve(ctx, doc)
		r.ran.Store(true)
	})
	if !first {
		return nil, ErrAlreadyResolved
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.active.Load(), nil
}

func (r *Runtime) resolve(ctx context.Context, doc metadata.Document) error {
	tracer := otel.Tracer("entitymeta/bootstrap")
	ctx, span := tracer.Start(ctx, "bootstrap.resolve")
	defer span.End()

	namespace := r.cfg.Namespace
	if namespace == "" {
		namespace = doc.Namespace
	}
	strategy := naming.New(r.cfg.Naming, r.logger.Logger)

	reg, err := discovery.Resolve(ctx, doc.Entities, discovery.Options{
		Namespace:          namespace,
		Naming:             strategy,
		Platform:           r.cfg.Platform,
		Types:              r.cfg.Types,
		EmbeddedSeparator:  r.cfg.EmbeddedSeparator,
		EmbeddedPrefixMode: r.cfg.EmbeddedPrefixMode,
		Logger:             r.logger.Logger,
		Metrics:            r.cfg.ResolutionMetrics,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to resolve metadata: %w", err)
	}

	fingerprint, err := Fingerprint(reg)
	if err != nil {
		return err
	}
	cache := compiled.NewCache(reg,
		compiled.WithPlatform(r.cfg.Platform),
		compiled.WithTypes(r.cfg.Types),
		compiled.WithMetrics(r.cfg.CompiledMetrics),
		compiled.WithLogger(r.logger.Logger),
	)
	r.active.Store(&Snapshot{
		Registry:    reg,
		Cache:       cache,
		Platform:    r.cfg.Platform,
		BuiltAt:     time.Now(),
		Fingerprint: fingerprint,
	})
	span.SetAttributes(
		attribute.Int("entities", reg.Len()),
		attribute.String("fingerprint", fingerprint),
	)
	r.logger.Info("metadata runtime ready",
		slog.Int("entities", reg.Len()),
		slog.String("fingerprint", fingerprint),
	)
	return nil
}

// Snapshot returns the resolved snapshot.
func (r *Runtime) Snapshot() (*Snapshot, error) {
	if !r.ran.Load() {
		return nil, ErrNotResolved
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.active.Load(), nil
}

// Registry returns the sealed registry, or nil before a successful resolution.
func (r *Runtime) Registry() *metadata.Registry {
	if snap := r.active.Load(); snap != nil {
		return snap.Registry
	}
	return nil
}

// Cache returns the compiled function cache, or nil before a successful resolution.
func (r *Runtime) Cache() *compiled.Cache {
	if snap := r.active.Load(); snap != nil {
		return snap.Cache
	}
	return nil
}

// Fingerprint hashes the JSON rendering of reg. Equal registries share a fingerprint.
func Fingerprint(reg *metadata.Registry) (string, error) {
	data, err := dump.JSON(reg)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint registry: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
