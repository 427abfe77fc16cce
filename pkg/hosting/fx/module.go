package hostingfx

import (
	"context"

	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"go.uber.org/fx"
)

// Module provides the web host with lifecycle management.
// Services are contributed through the "services" value group.
// Usage:
//
//	fx.New(
//	    hostingfx.Module,
//	    fx.Supply(hostingfx.Config{Port: "8080"}),
//	    fx.Provide(fx.Annotate(
//	        hostingfx.ProvideService[jobs.Storage](storage),
//	        fx.ResultTags(`group:"services"`),
//	    )),
//	)
var Module = fx.Module("hosting",
	fx.Provide(ProvideApplication),
	fx.Invoke(RegisterLifecycle),
)

// ApplicationParams contains dependencies for creating the application.
type ApplicationParams struct {
	fx.In

	Config        Config                      `optional:"true"`
	Services      []hosting.ServiceDescriptor `group:"services"`
	Observability observability.Observability `optional:"true"`
	Middlewares   []hosting.Middleware        `group:"middlewares"`
}

// ApplicationResult contains the application output.
type ApplicationResult struct {
	fx.Out

	Application *hosting.Application
	Builder     hosting.ApplicationBuilder
	Lifetime    hosting.ApplicationLifetime
}

// ProvideApplication creates the application from the injected configuration
// and service descriptors.
func ProvideApplication(p ApplicationParams) ApplicationResult {
	cfg := p.Config
	if cfg.Port == "" {
		cfg = DefaultConfig()
	}

	services := hosting.NewServiceCollection().Add(p.Services...)

	opts := []hosting.Option{
		hosting.WithPort(cfg.Port),
		hosting.WithReadTimeout(cfg.ReadTimeout),
		hosting.WithWriteTimeout(cfg.WriteTimeout),
		hosting.WithIdleTimeout(cfg.IdleTimeout),
		hosting.WithReadHeaderTimeout(cfg.ReadHeaderTimeout),
		hosting.WithShutdownTimeout(cfg.ShutdownTimeout),
	}

	if p.Observability != nil {
		opts = append(opts, hosting.WithObservability(p.Observability))
	}

	if len(p.Middlewares) > 0 {
		opts = append(opts, hosting.WithMiddlewares(p.Middlewares...))
	}

	app := hosting.New(services, opts...)

	return ApplicationResult{
		Application: app,
		Builder:     app,
		Lifetime:    app.Lifetime(),
	}
}

// LifecycleParams contains dependencies for application lifecycle management.
type LifecycleParams struct {
	fx.In

	Application *hosting.Application
	LC          fx.Lifecycle
}

// RegisterLifecycle starts the application with fx and stops it, firing the
// host lifecycle events, when fx stops.
func RegisterLifecycle(p LifecycleParams) {
	p.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return p.Application.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return p.Application.Stop(ctx)
		},
	})
}

// ProvideService is a helper to contribute a container registration.
// Usage:
//
//	fx.Provide(fx.Annotate(
//	    hostingfx.ProvideService[*dashboard.Options](opts),
//	    fx.ResultTags(`group:"services"`),
//	))
func ProvideService[T any](instance T) func() hosting.ServiceDescriptor {
	return func() hosting.ServiceDescriptor {
		return hosting.Singleton(instance)
	}
}

// Services supplies descriptors to the "services" group.
func Services(descriptors ...hosting.ServiceDescriptor) fx.Option {
	opts := make([]fx.Option, 0, len(descriptors))
	for _, d := range descriptors {
		d := d
		opts = append(opts, fx.Provide(fx.Annotate(
			func() hosting.ServiceDescriptor { return d },
			fx.ResultTags(`group:"services"`),
		)))
	}
	return fx.Options(opts...)
}
