package fiberhost

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func echoPath() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "path="+r.URL.Path)
	})
}

func TestMap_StripsPrefixAndScopesRequests(t *testing.T) {
	app := New(fiber.New(), nil)
	require.NoError(t, app.Map("/jobs", echoPath()))

	resp, err := app.App().Test(httptest.NewRequest(http.MethodGet, "/jobs/api/stats", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "path=/api/stats", string(body))

	resp, err = app.App().Test(httptest.NewRequest(http.MethodGet, "/jobsx", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.App().Test(httptest.NewRequest(http.MethodGet, "/other", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMap_Conflict(t *testing.T) {
	app := New(fiber.New(), nil)
	require.NoError(t, app.Map("/jobs", echoPath()))
	assert.ErrorIs(t, app.Map("/jobs", echoPath()), hosting.ErrRouteConflict)
	assert.Error(t, app.Map("jobs", echoPath()))
}

func TestNew_RegistersLifetime(t *testing.T) {
	app := New(fiber.New(), hosting.NewServiceCollection())

	lifetime, err := hosting.GetRequiredService[hosting.ApplicationLifetime](app.ApplicationServices())
	require.NoError(t, err)
	assert.Same(t, app.Lifetime(), lifetime)
}

func TestShutdown_FiresStoppingOnce(t *testing.T) {
	app := New(fiber.New(), nil)

	calls := 0
	app.Lifetime().ApplicationStopping().Register(func() { calls++ })

	require.NoError(t, app.Shutdown(context.Background()))
	require.NoError(t, app.Shutdown(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestWithTracing_RecordsServerSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	app := New(fiber.New(), nil, WithTracing(tp))
	require.NoError(t, app.Map("/jobs", echoPath()))

	resp, err := app.App().Test(httptest.NewRequest(http.MethodGet, "/jobs/api/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind)
}
