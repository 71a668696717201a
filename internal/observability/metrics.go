package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CompiledMetrics holds custom metrics for the compiled function cache.
type CompiledMetrics struct {
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	buildDuration metric.Float64Histogram
	diffCounter   metric.Int64Counter
	rowsMapped    metric.Int64Counter
}

// InitCompiledMetrics initializes compiled function metrics.
func InitCompiledMetrics() (*CompiledMetrics, error) {
	meter := otel.Meter("entitymeta")

	cacheHits, err := meter.Int64Counter(
		"compiled.cache.hits",
		metric.WithDescription("Number of compiled function cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		"compiled.cache.misses",
		metric.WithDescription("Number of compiled function cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	buildDuration, err := meter.Float64Histogram(
		"compiled.build.duration",
		metric.WithDescription("Duration of compiled function builds in microseconds"),
		metric.WithUnit("us"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create build duration histogram: %w", err)
	}

	diffCounter, err := meter.Int64Counter(
		"compiled.diffs.total",
		metric.WithDescription("Number of diffs computed, by whether they found changes"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create diff counter: %w", err)
	}

	rowsMapped, err := meter.Int64Counter(
		"compiled.rows.mapped",
		metric.WithDescription("Number of raw rows mapped to entity shape"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rows mapped counter: %w", err)
	}

	return &CompiledMetrics{
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
		buildDuration: buildDuration,
		diffCounter:   diffCounter,
		rowsMapped:    rowsMapped,
	}, nil
}

// RecordCacheHit records a lookup served from the cache.
func (m *CompiledMetrics) RecordCacheHit(ctx context.Context, function, entity string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("function", function),
		attribute.String("entity", entity),
	))
}

// RecordBuild records a cache miss and the time it took to build the function.
func (m *CompiledMetrics) RecordBuild(ctx context.Context, function, entity string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("function", function),
		attribute.String("entity", entity),
	}
	m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.buildDuration.Record(ctx, float64(duration.Microseconds()), metric.WithAttributes(attrs...))
}

// RecordDiff records one diff computation.
func (m *CompiledMetrics) RecordDiff(ctx context.Context, entity string, changed bool) {
	if m == nil {
		return
	}
	m.diffCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.Bool("changed", changed),
	))
}

// RecordRowsMapped records mapped rows.
func (m *CompiledMetrics) RecordRowsMapped(ctx context.Context, entity string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.rowsMapped.Add(ctx, count, metric.WithAttributes(attribute.String("entity", entity)))
}

// InitMetrics initializes all custom metrics.
func InitMetrics(logger *slog.Logger) (*ResolutionMetrics, *CompiledMetrics, error) {
	resolution, err := InitResolutionMetrics(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize resolution metrics: %w", err)
	}
	compiled, err := InitCompiledMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize compiled metrics: %w", err)
	}

	logger.Info("custom metadata metrics initialized")
	return resolution, compiled, nil
}
