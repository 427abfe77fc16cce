package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
	"github.com/JailtonJunior94/jobkit-go/pkg/hosting/fiberhost"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobhost"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/dashboard"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// DashboardTokenHeader carries the dashboard token when one is configured.
const DashboardTokenHeader = "X-Jobkit-Token"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a job server and the dashboard",
	Long: `Run a background job server and serve the dashboard over HTTP until
SIGINT or SIGTERM.

Built-in job types:
  http   delivers {"url": "...", "body": {...}} to a webhook
  log    logs its arguments
  sleep  waits for {"duration": "5s"}

Examples:
  jobkit serve
  JOBKIT_HTTP_ENGINE=fiber JOBKIT_DASHBOARD_PATH=/jobs jobkit serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	o11y, err := newObservability(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = o11y.Close() }()

	ctx := cmd.Context()
	storage, closeStorage, err := openStorage(ctx, cfg.Storage, o11y)
	if err != nil {
		return err
	}
	defer func() { _ = closeStorage() }()

	services, err := newServices(cfg, storage, o11y)
	if err != nil {
		return err
	}

	o11y.Logger().Info(ctx, "starting jobkit",
		observability.String("version", Version),
		observability.String("engine", cfg.HTTP.Engine),
		observability.String("storage", cfg.Storage.Driver),
	)

	if cfg.HTTP.Engine == "fiber" {
		return serveFiber(ctx, cfg, services, o11y)
	}
	return serveChi(ctx, cfg, services, o11y)
}

func newServices(cfg *Config, storage jobs.Storage, o11y *telemetry) (*hosting.ServiceCollection, error) {
	services := hosting.NewServiceCollection()
	err := jobhost.AddJobs(services, func(c *jobs.GlobalConfiguration) {
		c.UseStorage(storage).UseObservability(o11y)
		registerBuiltinHandlers(c, o11y)
	})
	if err != nil {
		return nil, err
	}

	hosting.AddSingleton(services, dashboardOptions(cfg.Dashboard, o11y.gatherer))
	hosting.AddSingleton(services, serverOptions(cfg.Server))
	return services, nil
}

func dashboardOptions(cfg DashboardConfig, gatherer prometheus.Gatherer) *dashboard.Options {
	options := dashboard.DefaultOptions()
	options.Title = "jobkit"
	options.IsReadOnly = cfg.ReadOnly
	if cfg.Token != "" {
		options.Authorization = []dashboard.AuthorizationFilter{dashboard.HeaderToken(DashboardTokenHeader, cfg.Token)}
	}
	if gatherer != nil {
		options.MetricsGatherer = gatherer
	}
	return options
}

func serverOptions(cfg ServerConfig) *jobs.ServerOptions {
	options := jobs.DefaultServerOptions()
	if cfg.Name != "" {
		options.ServerName = cfg.Name
	}
	if cfg.Workers > 0 {
		options.WorkerCount = cfg.Workers
	}
	if len(cfg.Queues) > 0 {
		options.Queues = cfg.Queues
	}
	return options
}

func useJobs(app hosting.ApplicationBuilder, cfg *Config) error {
	if cfg.Server.Enabled {
		if err := jobhost.UseServer(app); err != nil {
			return err
		}
	}
	if cfg.Dashboard.Enabled {
		if err := jobhost.UseDashboard(app, cfg.Dashboard.Path); err != nil {
			return err
		}
	}
	return nil
}

func serveChi(ctx context.Context, cfg *Config, services *hosting.ServiceCollection, o11y *telemetry) error {
	opts := []hosting.Option{
		hosting.WithPort(cfg.HTTP.Port),
		hosting.WithShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		hosting.WithObservability(o11y),
	}
	if o11y.tracing {
		opts = append(opts, hosting.WithMiddlewares(hosting.Tracing(nil)))
	}

	app := hosting.New(services, opts...)
	if err := useJobs(app, cfg); err != nil {
		app.Lifetime().StopApplication()
		return err
	}
	return app.Run(ctx)
}

func serveFiber(ctx context.Context, cfg *Config, services *hosting.ServiceCollection, o11y *telemetry) error {
	opts := []fiberhost.Option{fiberhost.WithObservability(o11y)}
	if o11y.tracing {
		opts = append(opts, fiberhost.WithTracing(nil))
	}

	host := fiberhost.New(fiber.New(fiber.Config{DisableStartupMessage: true}), services, opts...)
	if err := useJobs(host, cfg); err != nil {
		host.Lifetime().StopApplication()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- host.Listen(":" + cfg.HTTP.Port)
	}()

	var err error
	select {
	case <-ctx.Done():
	case <-host.Lifetime().ApplicationStopping().Done():
	case err = <-serveErr:
		if err != nil {
			err = fmt.Errorf("fiber host failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, host.Shutdown(shutdownCtx))
}
