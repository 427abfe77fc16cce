package jobhost

import (
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/dashboard"
)

type dashboardSettings struct {
	options *dashboard.Options
	storage jobs.Storage
}

// DashboardOption overrides what UseDashboard resolves from the container.
type DashboardOption func(s *dashboardSettings)

// WithDashboardOptions takes precedence over registered *dashboard.Options.
func WithDashboardOptions(options *dashboard.Options) DashboardOption {
	return func(s *dashboardSettings) {
		s.options = options
	}
}

// WithDashboardStorage takes precedence over the registered storage.
func WithDashboardStorage(storage jobs.Storage) DashboardOption {
	return func(s *dashboardSettings) {
		s.storage = storage
	}
}

type serverSettings struct {
	options      *jobs.ServerOptions
	storage      jobs.Storage
	processes    []jobs.BackgroundProcess
	processesSet bool
}

// ServerOption overrides what UseServer resolves from the container.
type ServerOption func(s *serverSettings)

// WithServerOptions takes precedence over registered *jobs.ServerOptions.
func WithServerOptions(options *jobs.ServerOptions) ServerOption {
	return func(s *serverSettings) {
		s.options = options
	}
}

// WithServerStorage takes precedence over the registered storage.
func WithServerStorage(storage jobs.Storage) ServerOption {
	return func(s *serverSettings) {
		s.storage = storage
	}
}

// WithAdditionalProcesses replaces the registered background processes.
// An empty call runs the server without additional processes.
func WithAdditionalProcesses(processes ...jobs.BackgroundProcess) ServerOption {
	return func(s *serverSettings) {
		s.processes = processes
		s.processesSet = true
	}
}
