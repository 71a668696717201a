package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ResolutionMetrics holds custom metrics for metadata resolution runs.
type ResolutionMetrics struct {
	resolveCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	durationHist    metric.Float64Histogram
	entityCount     atomic.Int64
	lastSuccessUnix atomic.Int64
}

// InitResolutionMetrics initializes resolution metrics.
func InitResolutionMetrics(logger *slog.Logger) (*ResolutionMetrics, error) {
	meter := otel.Meter("entitymeta")

	resolveCounter, err := meter.Int64Counter(
		"metadata.resolve.total",
		metric.WithDescription("Total number of metadata resolution attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"metadata.resolve.errors.total",
		metric.WithDescription("Total number of failed metadata resolutions by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution error counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"metadata.resolve.duration",
		metric.WithDescription("Duration of metadata resolution in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution duration histogram: %w", err)
	}

	entitiesGauge, err := meter.Int64ObservableGauge(
		"metadata.entities",
		metric.WithDescription("Number of entities in the last resolved registry"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity gauge: %w", err)
	}

	lastSuccessGauge, err := meter.Int64ObservableGauge(
		"metadata.resolve.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful resolution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution last success gauge: %w", err)
	}

	metrics := &ResolutionMetrics{
		resolveCounter: resolveCounter,
		errorCounter:   errorCounter,
		durationHist:   durationHist,
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			if value := metrics.lastSuccessUnix.Load(); value > 0 {
				observer.ObserveInt64(lastSuccessGauge, value)
				observer.ObserveInt64(entitiesGauge, metrics.entityCount.Load())
			}
			return nil
		},
		entitiesGauge,
		lastSuccessGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register resolution gauge callback: %w", err)
	}

	logger.Info("metadata resolution metrics initialized")
	return metrics, nil
}

// RecordResolution records one resolution attempt. errorKind is empty on success.
func (m *ResolutionMetrics) RecordResolution(ctx context.Context, duration time.Duration, entities int, errorKind string) {
	if m == nil {
		return
	}
	success := errorKind == ""
	attrs := []attribute.KeyValue{attribute.Bool("success", success)}

	m.resolveCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if !success {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", errorKind)))
		return
	}

	m.entityCount.Store(int64(entities))
	m.lastSuccessUnix.Store(time.Now().Unix())
}
