// Package fiberhost lets jobkit extensions plug into a Fiber application.
package fiberhost

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.opentelemetry.io/otel/trace"
)

// Option configures the Fiber host.
type Option func(*Application)

// WithObservability sets the provider used by the host.
func WithObservability(o11y observability.Observability) Option {
	return func(a *Application) {
		a.o11y = o11y
	}
}

// WithTracing installs the otelfiber middleware. A nil provider uses the
// global tracer provider.
func WithTracing(tp trace.TracerProvider) Option {
	return func(a *Application) {
		a.tracing = true
		a.tracerProvider = tp
	}
}

// Application adapts a *fiber.App to hosting.ApplicationBuilder.
type Application struct {
	app      *fiber.App
	o11y     observability.Observability
	services hosting.ServiceProvider
	lifetime *hosting.Lifetime
	logger   observability.Logger

	tracing        bool
	tracerProvider trace.TracerProvider

	mu     sync.Mutex
	mounts map[string]struct{}

	stopOnce sync.Once
	stopErr  error
}

var _ hosting.ApplicationBuilder = (*Application)(nil)

// New wraps app. The lifetime and observability provider are registered into
// services before the provider is built.
func New(app *fiber.App, services *hosting.ServiceCollection, opts ...Option) *Application {
	a := &Application{
		app:    app,
		mounts: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.o11y == nil {
		a.o11y = noop.NewProvider()
	}
	a.logger = a.o11y.Logger().With(observability.String("component", "fiberhost"))

	if a.tracing {
		var traceOpts []otelfiber.Option
		if a.tracerProvider != nil {
			traceOpts = append(traceOpts, otelfiber.WithTracerProvider(a.tracerProvider))
		}
		app.Use(otelfiber.Middleware(traceOpts...))
	}

	if services == nil {
		services = hosting.NewServiceCollection()
	}
	a.lifetime = hosting.NewLifetime(a.logger)
	hosting.AddSingleton[hosting.ApplicationLifetime](services, a.lifetime)
	if !services.Contains(reflect.TypeFor[observability.Observability]()) {
		hosting.AddSingleton[observability.Observability](services, a.o11y)
	}
	a.services = services.Build()

	return a
}

// ApplicationServices returns the built service provider.
func (a *Application) ApplicationServices() hosting.ServiceProvider {
	return a.services
}

// Lifetime returns the application lifetime.
func (a *Application) Lifetime() *hosting.Lifetime {
	return a.lifetime
}

// App returns the wrapped Fiber application.
func (a *Application) App() *fiber.App {
	return a.app
}

// Map forwards requests under pathMatch to handler with the prefix stripped.
func (a *Application) Map(pathMatch string, handler http.Handler) error {
	if handler == nil {
		return errors.New("fiberhost: handler cannot be nil")
	}
	if !strings.HasPrefix(pathMatch, "/") {
		return fmt.Errorf("fiberhost: path %q must start with '/'", pathMatch)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.mounts[pathMatch]; exists {
		return fmt.Errorf("fiberhost: %w: %s", hosting.ErrRouteConflict, pathMatch)
	}

	forward := adaptor.HTTPHandler(http.StripPrefix(pathMatch, handler))
	a.app.Use(pathMatch, func(c *fiber.Ctx) error {
		// Fiber's Use matches raw prefixes; "/jobsx" must not reach "/jobs".
		p := c.Path()
		if p != pathMatch && !strings.HasPrefix(p, pathMatch+"/") {
			return c.Next()
		}
		return forward(c)
	})
	a.mounts[pathMatch] = struct{}{}
	return nil
}

// Listen binds addr, fires ApplicationStarted and serves until Shutdown.
func (a *Application) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("fiberhost: failed to listen on %s: %w", addr, err)
	}

	a.logger.Info(context.Background(), "application started", observability.String("addr", ln.Addr().String()))
	a.lifetime.NotifyStarted()
	return a.app.Listener(ln)
}

// Shutdown fires ApplicationStopping, shuts Fiber down and fires
// ApplicationStopped. It is idempotent.
func (a *Application) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.lifetime.StopApplication()
		if err := a.app.ShutdownWithContext(ctx); err != nil {
			a.stopErr = fmt.Errorf("fiberhost: shutdown failed: %w", err)
		}
		a.lifetime.NotifyStopped()
	})
	return a.stopErr
}
