// Package inspectapp runs one metaresolve process: it loads declarations, resolves them,
// writes the registry dump, optionally samples rows, and optionally serves the resolved
// metadata over HTTP until stopped.
package inspectapp

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"entitymeta/internal/bootstrap"
	"entitymeta/internal/config"
	"entitymeta/internal/declsource"
	"entitymeta/internal/logging"
	"entitymeta/internal/observability"
	"entitymeta/internal/rowscan"
)

// App owns runtime resources for the metaresolve lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	stdout        io.Writer
	sourceOptions []declsource.Option
	executor      rowscan.QueryExecutor

	providers *observability.Providers

	resolutionMetrics *observability.ResolutionMetrics
	compiledMetrics   *observability.CompiledMetrics

	runtime  *bootstrap.Runtime
	snapshot *bootstrap.Snapshot
	sampler  *rowscan.Sampler

	mux     *http.ServeMux
	handler http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// Option configures an App.
type Option func(*App)

// WithStdout replaces os.Stdout as the destination of dumps and samples written to "-".
func WithStdout(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

// WithSourceOptions passes options to the declaration loader.
func WithSourceOptions(opts ...declsource.Option) Option {
	return func(a *App) { a.sourceOptions = append(a.sourceOptions, opts...) }
}

// WithExecutor samples through exec instead of opening a database from the platform DSN.
func WithExecutor(exec rowscan.QueryExecutor) Option {
	return func(a *App) { a.executor = exec }
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// AttachProviders registers the OpenTelemetry providers for shutdown cleanup. The
// Prometheus exporter of p backs the /metrics endpoint.
func (a *App) AttachProviders(p *observability.Providers) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.providers = p
}

// Snapshot returns the resolved metadata, or nil before Init succeeds.
func (a *App) Snapshot() *bootstrap.Snapshot {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.snapshot
}

// Handler returns the inspector handler, or nil when the inspector is disabled.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
