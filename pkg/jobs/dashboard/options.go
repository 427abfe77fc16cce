// Package dashboard serves a JSON monitoring and management API for jobs.
package dashboard

import (
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures the dashboard.
type Options struct {
	// AppPath is the link back to the host application.
	AppPath string

	// Title is reported by the overview endpoint.
	Title string

	// Authorization filters must all allow a request. An empty list allows
	// every request.
	Authorization []AuthorizationFilter

	// IsReadOnly rejects mutating routes with 403.
	IsReadOnly bool

	// PageSize bounds job listings.
	PageSize int

	// MetricsGatherer is exposed on /metrics next to the job gauges.
	MetricsGatherer prometheus.Gatherer

	// Configuration provides recurring jobs. Defaults to jobs.Configuration().
	Configuration *jobs.GlobalConfiguration

	// Observability defaults to the provider of Configuration.
	Observability observability.Observability
}

// DefaultOptions only lets local requests in.
func DefaultOptions() *Options {
	return &Options{
		AppPath:       "/",
		Title:         "Jobs Dashboard",
		Authorization: []AuthorizationFilter{LocalRequestsOnly()},
		PageSize:      20,
	}
}

func (o *Options) configuration() *jobs.GlobalConfiguration {
	if o.Configuration != nil {
		return o.Configuration
	}
	return jobs.Configuration()
}

func (o *Options) observability() observability.Observability {
	if o.Observability != nil {
		return o.Observability
	}
	return o.configuration().Observability()
}

func (o *Options) pageSize() int {
	if o.PageSize <= 0 {
		return 20
	}
	return min(o.PageSize, 500)
}
