// Package observability wires OpenTelemetry providers and the custom metrics of the
// resolver and the compiled function cache. Metrics are exposed through a Prometheus
// exporter; traces and logs are shipped over OTLP (gRPC or HTTP).
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const shutdownTimeout = 5 * time.Second

// Config describes the process and which signals are enabled.
type Config struct {
	ServiceName      string
	ServiceVersion   string
	Environment      string
	TraceSampleRatio float64

	MetricsEnabled    bool
	TracingEnabled    bool
	LogExportsEnabled bool

	Traces ExporterConfig
	Logs   ExporterConfig
}

func (c Config) resource() (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", c.ServiceName),
			attribute.String("service.version", c.ServiceVersion),
			attribute.String("deployment.environment", c.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// Providers holds whichever providers Setup enabled. Nil fields are disabled signals.
type Providers struct {
	Meter  *MeterProvider
	Tracer *TracerProvider
	Logger *LoggerProvider
}

// Setup initializes the enabled providers and installs the meter and tracer providers
// globally. On error, providers created so far are shut down.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*Providers, error) {
	p := &Providers{}
	fail := func(err error) (*Providers, error) {
		_ = p.Shutdown(ctx, logger)
		return nil, err
	}

	if cfg.MetricsEnabled {
		mp, err := InitMeterProvider(cfg)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize metrics: %w", err))
		}
		p.Meter = mp
	}
	if cfg.TracingEnabled {
		tp, err := InitTracerProvider(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize tracing: %w", err))
		}
		p.Tracer = tp
	}
	if cfg.LogExportsEnabled {
		lp, err := InitLoggerProvider(ctx, cfg)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize log export: %w", err))
		}
		p.Logger = lp
	}
	return p, nil
}

// LogProvider returns the OTLP log provider for the logging bridge, or nil.
func (p *Providers) LogProvider() *log.LoggerProvider {
	if p == nil || p.Logger == nil {
		return nil
	}
	return p.Logger.provider
}

// Exporter returns the Prometheus exporter, or nil when metrics are disabled.
func (p *Providers) Exporter() *prometheus.Exporter {
	if p == nil || p.Meter == nil {
		return nil
	}
	return p.Meter.exporter
}

// Shutdown flushes and stops every enabled provider, logs last.
func (p *Providers) Shutdown(ctx context.Context, logger *slog.Logger) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx, logger))
	}
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx, logger))
	}
	if p.Logger != nil {
		errs = append(errs, p.Logger.Shutdown(ctx, logger))
	}
	return errors.Join(errs...)
}

// MeterProvider wraps the OpenTelemetry meter provider and its Prometheus reader.
type MeterProvider struct {
	provider *metric.MeterProvider
	exporter *prometheus.Exporter
}

// InitMeterProvider initializes metrics with a Prometheus exporter.
func InitMeterProvider(cfg Config) (*MeterProvider, error) {
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)
	return &MeterProvider{provider: provider, exporter: exporter}, nil
}

// Shutdown stops the meter provider.
func (mp *MeterProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "meter", mp.provider.Shutdown)
}

// Exporter returns the Prometheus exporter backing /metrics.
func (mp *MeterProvider) Exporter() *prometheus.Exporter {
	return mp.exporter
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// InitTracerProvider initializes tracing with an OTLP span exporter.
func InitTracerProvider(ctx context.Context, cfg Config) (*TracerProvider, error) {
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}
	exporter, err := newSpanExporter(ctx, cfg.Traces)
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(traceSamplerForRatio(cfg.TraceSampleRatio)),
	)
	otel.SetTracerProvider(provider)
	return &TracerProvider{provider: provider}, nil
}

func traceSamplerForRatio(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Shutdown flushes pending spans and stops the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "tracer", tp.provider.Shutdown)
}

// LoggerProvider wraps the OpenTelemetry logger provider.
type LoggerProvider struct {
	provider *log.LoggerProvider
}

// InitLoggerProvider initializes log export with an OTLP log exporter.
// It is not installed globally; the logging bridge takes it explicitly.
func InitLoggerProvider(ctx context.Context, cfg Config) (*LoggerProvider, error) {
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}
	exporter, err := newLogExporter(ctx, cfg.Logs)
	if err != nil {
		return nil, err
	}
	provider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(exporter)),
	)
	return &LoggerProvider{provider: provider}, nil
}

// Shutdown flushes pending records and stops the logger provider.
func (lp *LoggerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "logger", lp.provider.Shutdown)
}

// Provider returns the underlying logger provider.
func (lp *LoggerProvider) Provider() *log.LoggerProvider {
	return lp.provider
}

func shutdown(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := fn(shutdownCtx); err != nil {
		logger.Error("failed to shutdown "+name+" provider", slog.String("error", err.Error()))
		return err
	}
	logger.Info(name + " provider shutdown successfully")
	return nil
}
