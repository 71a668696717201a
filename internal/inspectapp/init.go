package inspectapp

import (
	"context"
	"fmt"
	"log/slog"

	"entitymeta/internal/bootstrap"
	"entitymeta/internal/declsource"
	"entitymeta/internal/logging"
	"entitymeta/internal/metadata"
	"entitymeta/internal/observability"
	"entitymeta/internal/platform"
	"entitymeta/internal/rowscan"
)

// Init loads and resolves the declarations and prepares sampling and the inspector.
// It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	providers := a.providers
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if providers != nil {
		cleanup.push("OpenTelemetry providers", func(shutdownCtx context.Context) error {
			return providers.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	resolutionMetrics, compiledMetrics, err := initMetrics(a.cfg.Observability.MetricsEnabled, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	settings, err := a.cfg.Platform.PlatformSettings()
	if err != nil {
		return fmt.Errorf("failed to read platform settings: %w", err)
	}
	pf, err := platform.New(settings)
	if err != nil {
		return fmt.Errorf("failed to create platform: %w", err)
	}

	doc, err := a.loadDeclarations(ctx)
	if err != nil {
		return err
	}

	rt, err := bootstrap.New(bootstrap.Config{
		Namespace:          a.cfg.Declarations.Namespace,
		Naming:             a.cfg.Naming,
		Platform:           pf,
		EmbeddedSeparator:  a.cfg.Embedded.Separator,
		EmbeddedPrefixMode: a.cfg.Embedded.PrefixMode,
		Logger:             a.logger,
		ResolutionMetrics:  resolutionMetrics,
		CompiledMetrics:    compiledMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create resolution runtime: %w", err)
	}
	snapshot, err := rt.Resolve(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to resolve declarations: %w", err)
	}
	a.logger.Info("metadata resolved",
		slog.String("namespace", snapshot.Registry.Namespace()),
		slog.Int("entities", snapshot.Registry.Len()),
		slog.String("platform", pf.Name()),
		slog.String("fingerprint", snapshot.Fingerprint),
	)

	var sampler *rowscan.Sampler
	if a.cfg.Sample.Entity != "" {
		exec := a.executor
		if exec == nil {
			db, closeDB, err := rowscan.Open(ctx, rowscan.OpenConfig{
				Platform:       pf,
				DSN:            settings.DSN,
				ConnectTimeout: a.cfg.Platform.ConnectTimeout,
				Tracing:        a.cfg.Observability.TracingEnabled,
				Metrics:        a.cfg.Observability.MetricsEnabled,
			}, a.logger.Logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			cleanup.push("database", func(_ context.Context) error {
				return closeDB()
			})
			exec = rowscan.NewStandardExecutor(db)
		}
		sampler = rowscan.NewSampler(exec, snapshot.Registry, snapshot.Cache, pf, a.logger.Logger)
	}

	a.stateMu.Lock()
	a.resolutionMetrics = resolutionMetrics
	a.compiledMetrics = compiledMetrics
	a.runtime = rt
	a.snapshot = snapshot
	a.sampler = sampler
	a.stateMu.Unlock()

	if a.cfg.Inspect.Enabled {
		mux := buildRouter(a.cfg, a.logger, rt, providers)
		handler := wrapHTTPHandler(a.cfg, a.logger, mux)
		serverAddr := fmt.Sprintf(":%d", a.cfg.Inspect.Port)
		srv := buildServer(a.cfg, handler, serverAddr)
		cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
			return srv.Shutdown(shutdownCtx)
		})

		a.stateMu.Lock()
		a.mux = mux
		a.handler = handler
		a.serverAddr = serverAddr
		a.srv = srv
		a.stateMu.Unlock()
	}

	a.stateMu.Lock()
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}

func initMetrics(enabled bool, logger *logging.Logger) (*observability.ResolutionMetrics, *observability.CompiledMetrics, error) {
	if !enabled {
		return nil, nil, nil
	}
	resolution, cache, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("resolution metrics initialized")
	return resolution, cache, nil
}

func (a *App) loadDeclarations(ctx context.Context) (metadata.Document, error) {
	opts := append([]declsource.Option{
		declsource.WithS3Config(declsource.S3Config{
			Region:    a.cfg.Declarations.AWSRegion,
			Endpoint:  a.cfg.Declarations.AWSEndpoint,
			PathStyle: a.cfg.Declarations.AWSPathStyle,
		}),
	}, a.sourceOptions...)

	doc, err := declsource.New(opts...).Load(ctx, a.cfg.Declarations.Source)
	if err != nil {
		return metadata.Document{}, err
	}
	a.logger.Info("declarations loaded",
		slog.String("source", a.cfg.Declarations.Source),
		slog.Int("entities", len(doc.Entities)),
	)
	return doc, nil
}
