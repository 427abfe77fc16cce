package jobhostfx

import (
	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
	hostingfx "github.com/JailtonJunior94/jobkit-go/pkg/hosting/fx"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobhost"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/dashboard"
	"go.uber.org/fx"
)

// Module mounts the dashboard and starts a job server on the host provided
// by hostingfx.Module. Background processes are contributed through the
// "processes" value group.
// Usage:
//
//	fx.New(
//	    hostingfx.Module,
//	    jobhostfx.Services(func(c *jobs.GlobalConfiguration) {
//	        c.UseStorage(storage).Handle("email.send", sendEmail)
//	    }),
//	    jobhostfx.Module,
//	)
var Module = fx.Module("jobhost",
	fx.Invoke(Register),
)

// Params contains the dependencies of Register. Optional values take
// precedence over the service container.
type Params struct {
	fx.In

	Builder          hosting.ApplicationBuilder
	Config           *Config                  `optional:"true"`
	Storage          jobs.Storage             `optional:"true"`
	ServerOptions    *jobs.ServerOptions      `optional:"true"`
	DashboardOptions *dashboard.Options       `optional:"true"`
	Processes        []jobs.BackgroundProcess `group:"processes"`
}

// Register applies the configuration to the host.
func Register(p Params) error {
	cfg := p.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.ServerEnabled {
		opts := []jobhost.ServerOption{
			jobhost.WithServerOptions(p.ServerOptions),
			jobhost.WithServerStorage(p.Storage),
		}
		if len(p.Processes) > 0 {
			opts = append(opts, jobhost.WithAdditionalProcesses(p.Processes...))
		}
		if err := jobhost.UseServer(p.Builder, opts...); err != nil {
			return err
		}
	}

	if cfg.DashboardEnabled {
		path := cfg.DashboardPath
		if path == "" {
			path = jobhost.DefaultDashboardPath
		}
		return jobhost.UseDashboard(p.Builder, path,
			jobhost.WithDashboardOptions(p.DashboardOptions),
			jobhost.WithDashboardStorage(p.Storage),
		)
	}
	return nil
}

// Services contributes the jobhost.AddJobs registrations to the
// hostingfx "services" group.
func Services(configure jobs.ConfigureFunc) fx.Option {
	return hostingfx.Services(jobhost.ServiceDescriptors(configure)...)
}

// ProvideProcess contributes a background process to the "processes" group.
func ProvideProcess(process jobs.BackgroundProcess) fx.Option {
	return fx.Provide(fx.Annotate(
		func() jobs.BackgroundProcess { return process },
		fx.ResultTags(`group:"processes"`),
	))
}
