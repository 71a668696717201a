package inspectapp

import (
	"context"
	"log/slog"

	"entitymeta/internal/config"
	"entitymeta/internal/logging"
	"entitymeta/internal/observability"
)

// InitLogger builds the process logger and the OpenTelemetry providers. When log export
// is enabled the logger is rebuilt so records also reach the OTLP log provider.
func InitLogger(ctx context.Context, cfg *config.Config) (*logging.Logger, *observability.Providers, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	providerCfg := cfg.Observability.Providers()
	if providerCfg.MetricsEnabled || providerCfg.TracingEnabled || providerCfg.LogExportsEnabled {
		logger.Info("initializing OpenTelemetry",
			slog.String("service_name", providerCfg.ServiceName),
			slog.String("service_version", providerCfg.ServiceVersion),
			slog.String("environment", providerCfg.Environment),
			slog.Bool("metrics", providerCfg.MetricsEnabled),
			slog.Bool("tracing", providerCfg.TracingEnabled),
			slog.Bool("log_exports", providerCfg.LogExportsEnabled),
		)
	}

	providers, err := observability.Setup(ctx, providerCfg, logger.Logger)
	if err != nil {
		return nil, nil, err
	}

	if lp := providers.LogProvider(); lp != nil {
		loggerCfg.LoggerProvider = lp
		logger = logging.NewLogger(loggerCfg)
		slog.SetDefault(logger.Logger)
		logger.Info("OpenTelemetry logging initialized")
	}

	return logger, providers, nil
}
