package inspectapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"entitymeta/internal/bootstrap"
	"entitymeta/internal/config"
	"entitymeta/internal/dump"
	"entitymeta/internal/logging"
	"entitymeta/internal/metadata"
	"entitymeta/internal/metaschema"
	"entitymeta/internal/middleware"
	"entitymeta/internal/observability"
)

func buildRouter(cfg *config.Config, logger *logging.Logger, rt *bootstrap.Runtime, providers *observability.Providers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metadata", metadataHandler(rt))
	mux.HandleFunc("GET /metadata/summary", summaryHandler(rt))
	mux.HandleFunc("GET /metadata/entities/{name}", entityHandler(rt))
	mux.HandleFunc("GET /health", healthHandler(rt))
	mux.Handle("/graphql", newGraphQLHandler(rt, cfg.Inspect.GraphiQL))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/metadata", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	if cfg.Observability.MetricsEnabled && providers.Exporter() != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	// Request logging runs inside the otelhttp span so the request ID lands on it.
	handler = middleware.RequestLogging(logger)(handler)
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}
	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/metadata", "/metadata/summary", "/health", "/metrics", "/graphql":
		return rawPath
	}
	if strings.HasPrefix(rawPath, "/metadata/entities/") {
		return "/metadata/entities/{name}"
	}
	return "/*"
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Inspect.ReadTimeout,
		WriteTimeout: cfg.Inspect.WriteTimeout,
		IdleTimeout:  cfg.Inspect.IdleTimeout,
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logAttrs := []any{
			slog.String("address", serverAddr),
			slog.String("metadata_endpoint", "/metadata"),
			slog.String("health_endpoint", "/health"),
			slog.String("graphql_endpoint", "/graphql"),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}
		logger.Info("inspector starting", logAttrs...)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	writeJSON(w, status, body)
}

// metadataHandler serves the full registry dump.
func metadataHandler(rt *bootstrap.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := rt.Snapshot()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "metadata not resolved")
			return
		}
		body, err := dump.JSON(snap.Registry)
		if err != nil {
			logging.FromContext(r.Context()).Error("failed to render metadata", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to render metadata")
			return
		}
		w.Header().Set("ETag", `"`+snap.Fingerprint+`"`)
		writeJSON(w, http.StatusOK, body)
	}
}

func summaryHandler(rt *bootstrap.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := rt.Snapshot()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "metadata not resolved")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprint(w, dump.Summary(snap.Registry))
	}
}

// entityHandler serves one entity descriptor by name.
func entityHandler(rt *bootstrap.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := rt.Snapshot()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "metadata not resolved")
			return
		}
		name := r.PathValue("name")
		entity, err := snap.Registry.Get(name)
		if errors.Is(err, metadata.ErrUnknownEntity) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown entity %q", name))
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		body, err := dump.EntityJSON(entity)
		if err != nil {
			logging.FromContext(r.Context()).Error("failed to render entity",
				slog.String("entity", name),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to render entity")
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// graphQLHandler serves the read-only metadata schema. The schema is built on the first
// request after resolution and reused afterwards.
type graphQLHandler struct {
	rt       *bootstrap.Runtime
	graphiQL bool

	once    sync.Once
	handler http.Handler
	err     error
}

func newGraphQLHandler(rt *bootstrap.Runtime, graphiQL bool) *graphQLHandler {
	return &graphQLHandler{rt: rt, graphiQL: graphiQL}
}

func (g *graphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, err := g.rt.Snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "metadata not resolved")
		return
	}

	g.once.Do(func() {
		schema, err := metaschema.NewBuilder(snap.Registry).Build()
		if err != nil {
			g.err = err
			return
		}
		g.handler = handler.New(&handler.Config{
			Schema:   &schema,
			Pretty:   true,
			GraphiQL: g.graphiQL,
		})
	})
	if g.err != nil {
		logging.FromContext(r.Context()).Error("failed to build metadata schema", slog.String("error", g.err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to build metadata schema")
		return
	}
	g.handler.ServeHTTP(w, r)
}

type healthStatus struct {
	Status      string `json:"status"`
	Entities    int    `json:"entities"`
	Fingerprint string `json:"fingerprint,omitempty"`
	BuiltAt     string `json:"builtAt,omitempty"`
}

// healthHandler reports whether resolution succeeded.
func healthHandler(rt *bootstrap.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())

		snap, err := rt.Snapshot()
		if err != nil {
			reqLogger.Error("health check failed", slog.String("error", err.Error()))
			body, _ := json.Marshal(healthStatus{Status: "unhealthy"})
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}

		reqLogger.Debug("health check passed")
		body, _ := json.Marshal(healthStatus{
			Status:      "healthy",
			Entities:    snap.Registry.Len(),
			Fingerprint: snap.Fingerprint,
			BuiltAt:     snap.BuiltAt.UTC().Format(time.RFC3339),
		})
		writeJSON(w, http.StatusOK, body)
	}
}
