// Command metaresolve resolves entity declarations into the metadata registry, writes
// the registry dump, and optionally samples rows or serves the metadata over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"entitymeta/internal/config"
	"entitymeta/internal/inspectapp"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("metaresolve failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("metaresolve", pflag.ContinueOnError)
	cfg, err := config.Loader{Flags: flags, Args: args}.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if showVersion, _ := flags.GetBool("version"); showVersion {
		_, _ = fmt.Fprintf(stdout, "metaresolve %s (%s)\n", Version, Commit)
		return nil
	}

	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed: %s", validationResult.Error())
	}

	ctx := context.Background()
	logger, providers, err := inspectapp.InitLogger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	app, err := inspectapp.New(cfg, logger, inspectapp.WithStdout(stdout))
	if err != nil {
		_ = providers.Shutdown(ctx, logger.Logger)
		return err
	}
	app.AttachProviders(providers)

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Inspect.ShutdownTimeout)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	}

	if err := app.Init(ctx); err != nil {
		return err
	}
	if err := app.Report(ctx); err != nil {
		_ = shutdown()
		return err
	}
	if !cfg.Inspect.Enabled {
		return shutdown()
	}

	serverErrors, err := app.Start()
	if err != nil {
		_ = shutdown()
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	_, waitErr := app.WaitForStop(stop, serverErrors)

	logger.Info("shutting down inspector")
	shutdownErr := shutdown()

	if waitErr != nil {
		return waitErr
	}
	if shutdownErr != nil {
		return shutdownErr
	}

	logger.Info("inspector stopped")
	return nil
}
