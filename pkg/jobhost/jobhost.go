package jobhost

import (
	"context"
	"strings"

	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/dashboard"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
)

// DefaultDashboardPath is where the dashboard is usually mounted.
const DefaultDashboardPath = "/hangfire"

// UseDashboard mounts the dashboard under pathMatch.
//
// Options come from WithDashboardOptions, then a registered
// *dashboard.Options, then dashboard.DefaultOptions. Storage comes from
// WithDashboardStorage, then the registered jobs.Storage.
func UseDashboard(app hosting.ApplicationBuilder, pathMatch string, opts ...DashboardOption) error {
	return defaultInitializer.useDashboard(app, pathMatch, opts...)
}

// UseServer starts a background job server and stops it when the
// application begins shutting down.
//
// Options come from WithServerOptions, then a registered *jobs.ServerOptions,
// then jobs.DefaultServerOptions. Storage comes from WithServerStorage, then
// the registered jobs.Storage. Processes come from WithAdditionalProcesses,
// then every registered jobs.BackgroundProcess.
func UseServer(app hosting.ApplicationBuilder, opts ...ServerOption) error {
	return defaultInitializer.useServer(app, opts...)
}

func (g *initializer) useDashboard(app hosting.ApplicationBuilder, pathMatch string, opts ...DashboardOption) error {
	const op = "use_dashboard"

	if app == nil {
		return &ArgumentError{Param: "app"}
	}
	if pathMatch == "" {
		return &ArgumentError{Param: "pathMatch"}
	}
	if !strings.HasPrefix(pathMatch, "/") {
		return &ArgumentError{Param: "pathMatch", Message: "must start with '/'"}
	}
	if strings.HasSuffix(pathMatch, "/") {
		return &ArgumentError{Param: "pathMatch", Message: "must not end with '/'"}
	}

	var s dashboardSettings
	for _, opt := range opts {
		opt(&s)
	}

	sp := app.ApplicationServices()
	if err := g.ensure(op, sp); err != nil {
		return err
	}

	options, err := resolveOptional(s.options, sp, dashboard.DefaultOptions)
	if err != nil {
		return unresolved(op, "dashboard options", err)
	}
	storage, err := resolveRequired(s.storage, sp)
	if err != nil {
		return unresolved(op, "job storage", err)
	}
	routes, err := resolveRequired[*dashboard.RouteCollection](nil, sp)
	if err != nil {
		return unresolved(op, "dashboard routes", err)
	}

	resolved := *options
	if resolved.Configuration == nil {
		if resolved.Configuration, err = configuration(sp); err != nil {
			return unresolved(op, "job configuration", err)
		}
	}

	return app.Map(pathMatch, dashboard.NewMiddleware(storage, &resolved, routes))
}

func (g *initializer) useServer(app hosting.ApplicationBuilder, opts ...ServerOption) error {
	const op = "use_server"

	if app == nil {
		return &ArgumentError{Param: "app"}
	}

	var s serverSettings
	for _, opt := range opts {
		opt(&s)
	}

	sp := app.ApplicationServices()
	if err := g.ensure(op, sp); err != nil {
		return err
	}

	lifetime, err := hosting.GetRequiredService[hosting.ApplicationLifetime](sp)
	if err != nil {
		return unresolved(op, "application lifetime", err)
	}
	options, err := resolveOptional(s.options, sp, jobs.DefaultServerOptions)
	if err != nil {
		return unresolved(op, "server options", err)
	}
	storage, err := resolveRequired(s.storage, sp)
	if err != nil {
		return unresolved(op, "job storage", err)
	}

	processes := s.processes
	if !s.processesSet {
		if processes, err = hosting.GetServices[jobs.BackgroundProcess](sp); err != nil {
			return unresolved(op, "background processes", err)
		}
	}

	resolved := *options
	if resolved.Configuration == nil {
		if resolved.Configuration, err = configuration(sp); err != nil {
			return unresolved(op, "job configuration", err)
		}
	}

	server, err := jobs.NewBackgroundJobServer(&resolved, storage, processes)
	if err != nil {
		return err
	}

	logger := hostLogger(sp)
	lifetime.ApplicationStopping().Register(func() {
		if err := server.Close(); err != nil {
			logger.Error(context.Background(), "background job server did not stop cleanly",
				observability.String("server_id", server.ID()),
				observability.Error(err),
			)
		}
	})
	// TODO: decide whether ApplicationStopped should wait for a second drain phase.

	return nil
}

func configuration(sp hosting.ServiceProvider) (*jobs.GlobalConfiguration, error) {
	return resolveOptional[*jobs.GlobalConfiguration](nil, sp, jobs.Configuration)
}

func hostLogger(sp hosting.ServiceProvider) observability.Logger {
	o11y, ok, err := hosting.GetService[observability.Observability](sp)
	if err != nil || !ok || o11y == nil {
		o11y = noop.NewProvider()
	}
	return o11y.Logger().With(observability.String("component", "jobhost"))
}
