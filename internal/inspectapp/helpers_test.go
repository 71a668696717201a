package inspectapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"entitymeta/internal/bootstrap"
	"entitymeta/internal/config"
	"entitymeta/internal/declsource"
	"entitymeta/internal/middleware"
)

func resolvedRuntime(t *testing.T) *bootstrap.Runtime {
	t.Helper()
	doc, err := declsource.Parse([]byte(libraryYAML))
	require.NoError(t, err)
	rt, err := bootstrap.New(bootstrap.Config{Logger: testLogger()})
	require.NoError(t, err)
	_, err = rt.Resolve(context.Background(), doc)
	require.NoError(t, err)
	return rt
}

func serve(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRouter_Endpoints(t *testing.T) {
	cfg := testConfig("-")
	rt := resolvedRuntime(t)
	snap, err := rt.Snapshot()
	require.NoError(t, err)
	handler := wrapHTTPHandler(cfg, testLogger(), buildRouter(cfg, testLogger(), rt, nil))

	rec := serve(t, handler, http.MethodGet, "/metadata")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `"`+snap.Fingerprint+`"`, rec.Header().Get("ETag"))
	assert.True(t, json.Valid(rec.Body.Bytes()))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = serve(t, handler, http.MethodGet, "/metadata/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Book #2 table=book")

	rec = serve(t, handler, http.MethodGet, "/metadata/entities/Book")
	require.Equal(t, http.StatusOK, rec.Code)
	var book struct {
		Name        string   `json:"name"`
		PrimaryKeys []string `json:"primaryKeys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	assert.Equal(t, "Book", book.Name)
	assert.Equal(t, []string{"id"}, book.PrimaryKeys)

	rec = serve(t, handler, http.MethodGet, "/metadata/entities/Missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `unknown entity \"Missing\"`)

	rec = serve(t, handler, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 2, health.Entities)
	assert.Equal(t, snap.Fingerprint, health.Fingerprint)

	rec = serve(t, handler, http.MethodGet, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/metadata", rec.Header().Get("Location"))

	rec = serve(t, handler, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics disabled")
}

func TestRouter_GraphQL(t *testing.T) {
	cfg := testConfig("-")
	handler := buildRouter(cfg, testLogger(), resolvedRuntime(t), nil)

	body := `{"query":"{ entity(name: \"Book\") { name primaryKeys properties(persisted: true) { name } } }"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				Entity struct {
					Name        string   `json:"name"`
					PrimaryKeys []string `json:"primaryKeys"`
				} `json:"entity"`
			} `json:"data"`
			Errors []any `json:"errors"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Errors)
		assert.Equal(t, "Book", resp.Data.Entity.Name)
		assert.Equal(t, []string{"id"}, resp.Data.Entity.PrimaryKeys)
	}

	rec := serve(t, handler, http.MethodDelete, "/graphql")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestRouter_Unresolved(t *testing.T) {
	cfg := testConfig("-")
	rt, err := bootstrap.New(bootstrap.Config{Logger: testLogger()})
	require.NoError(t, err)
	handler := buildRouter(cfg, testLogger(), rt, nil)

	for _, target := range []string{"/metadata", "/metadata/summary", "/metadata/entities/Book", "/health", "/graphql"} {
		rec := serve(t, handler, http.MethodGet, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
	rec := serve(t, handler, http.MethodGet, "/health")
	assert.True(t, strings.Contains(rec.Body.String(), `"unhealthy"`))
}

func TestInit_BuildsInspector(t *testing.T) {
	cfg := testConfig("-")
	cfg.Inspect.Enabled = true
	cfg.Inspect.Port = 18080

	app := newStdinApp(t, cfg, &strings.Builder{})
	require.NoError(t, app.Init(context.Background()))

	handler := app.Handler()
	require.NotNil(t, handler)
	rec := serve(t, handler, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ":18080", app.serverAddr)
}

func TestWrapHTTPHandler_UsesHTTPRootSpanName(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	originalTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(originalTP)
	})

	cfg := &config.Config{
		Observability: config.ObservabilityConfig{TracingEnabled: true},
	}
	handler := wrapHTTPHandler(cfg, testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := serve(t, handler, http.MethodGet, "/metadata/entities/Book")
	require.Equal(t, http.StatusNoContent, rec.Code)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "GET /metadata/entities/{name}")
}

func TestNormalizeHTTPSpanRoute(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "/", expected: "/"},
		{input: "/metadata", expected: "/metadata"},
		{input: "/metadata/summary", expected: "/metadata/summary"},
		{input: "/metadata/entities/Book", expected: "/metadata/entities/{name}"},
		{input: "/health", expected: "/health"},
		{input: "/metrics", expected: "/metrics"},
		{input: "/graphql", expected: "/graphql"},
		{input: "/unknown/path", expected: "/*"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeHTTPSpanRoute(tt.input))
		})
	}
}

func TestHTTPRootSpanName(t *testing.T) {
	assert.Equal(t, "HTTP /*", httpRootSpanName(nil))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Equal(t, "GET /health", httpRootSpanName(req))
}
