package jobhost

import (
	"sync/atomic"

	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
)

// initializer runs the registered configuration callback once per process.
type initializer struct {
	state atomic.Int32
}

var defaultInitializer = &initializer{}

// ensure fails when AddJobs was not called. The first caller to get past
// the check runs the callback; every other caller returns at once.
func (g *initializer) ensure(op string, sp hosting.ServiceProvider) error {
	_, ok, err := hosting.GetService[markerService](sp)
	if err != nil || !ok {
		return missingSetup(op)
	}

	if !g.state.CompareAndSwap(0, 1) {
		return nil
	}

	configure, err := hosting.GetRequiredService[jobs.ConfigureFunc](sp)
	if err != nil {
		return unresolved(op, "configuration callback", err)
	}
	config, err := hosting.GetRequiredService[*jobs.GlobalConfiguration](sp)
	if err != nil {
		return unresolved(op, "job configuration", err)
	}

	configure(config)
	return nil
}
