package hostingfx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestModule_ProvidesApplicationWithServices(t *testing.T) {
	var (
		app     *hosting.Application
		builder hosting.ApplicationBuilder
	)

	fxApp := fxtest.New(t,
		Module,
		fx.Supply(Config{Port: "0", ShutdownTimeout: time.Second}),
		Services(hosting.Singleton("from-group")),
		fx.Provide(fx.Annotate(ProvideService(42), fx.ResultTags(`group:"services"`))),
		fx.Populate(&app, &builder),
	)

	assert.Same(t, app, builder)

	s, err := hosting.GetRequiredService[string](app.ApplicationServices())
	require.NoError(t, err)
	assert.Equal(t, "from-group", s)

	n, err := hosting.GetRequiredService[int](app.ApplicationServices())
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	stopping := false
	app.Lifetime().ApplicationStopping().Register(func() { stopping = true })

	fxApp.RequireStart()
	fxApp.RequireStop()

	assert.True(t, stopping)
}

func TestModule_MiddlewaresGroup(t *testing.T) {
	var app *hosting.Application

	mw := hosting.Middleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test", "1")
			next.ServeHTTP(w, r)
		})
	})

	fxtest.New(t,
		Module,
		fx.Supply(Config{Port: "0"}),
		fx.Provide(fx.Annotate(func() hosting.Middleware { return mw }, fx.ResultTags(`group:"middlewares"`))),
		fx.Populate(&app),
	)

	require.NoError(t, app.Map("/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "5")
	t.Setenv("HTTP_READ_TIMEOUT", "invalid")

	cfg := ConfigFromEnv()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
}
