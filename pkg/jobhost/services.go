package jobhost

import (
	"reflect"

	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/dashboard"
)

// markerService signals that AddJobs ran against the container.
type markerService struct{}

// AddJobs registers the services UseDashboard and UseServer depend on:
// the configuration callback, the process configuration, the default
// dashboard routes and a storage resolved from the configuration once the
// callback ran. Storage, configuration and routes already registered are kept.
func AddJobs(services *hosting.ServiceCollection, configure jobs.ConfigureFunc) error {
	if services == nil {
		return &ArgumentError{Param: "services"}
	}
	if configure == nil {
		return &ArgumentError{Param: "configure"}
	}

	for _, d := range ServiceDescriptors(configure) {
		switch d.Type {
		case reflect.TypeFor[jobs.Storage](),
			reflect.TypeFor[*jobs.GlobalConfiguration](),
			reflect.TypeFor[*dashboard.RouteCollection]():
			if services.Contains(d.Type) {
				continue
			}
		}
		services.Add(d)
	}
	return nil
}

// ServiceDescriptors returns the AddJobs registrations, for containers
// assembled from value groups.
func ServiceDescriptors(configure jobs.ConfigureFunc) []hosting.ServiceDescriptor {
	return []hosting.ServiceDescriptor{
		hosting.Singleton(markerService{}),
		hosting.Singleton(configure),
		hosting.Singleton(jobs.Configuration()),
		hosting.Singleton(dashboard.DefaultRoutes()),
		hosting.Factory(configuredStorage),
	}
}

func configuredStorage(sp hosting.ServiceProvider) (jobs.Storage, error) {
	config, err := hosting.GetRequiredService[*jobs.GlobalConfiguration](sp)
	if err != nil {
		return nil, err
	}
	return config.Storage()
}
