package jobs

import (
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
)

// ServerOptions configures a BackgroundJobServer.
type ServerOptions struct {
	// ServerName identifies the host in server records. Defaults to the hostname.
	ServerName string

	// WorkerCount is the number of concurrent workers.
	WorkerCount int

	// Queues are processed in priority order.
	Queues []string

	// PollInterval is how long an idle worker waits before fetching again.
	PollInterval time.Duration

	// SchedulePollInterval is how often scheduled jobs are promoted.
	SchedulePollInterval time.Duration

	// HeartbeatInterval is how often the server record is refreshed.
	HeartbeatInterval time.Duration

	// ServerCheckInterval is how often dead servers are looked for.
	ServerCheckInterval time.Duration

	// ServerTimeout is the heartbeat age after which a server is considered dead.
	ServerTimeout time.Duration

	// JobTimeout bounds a single job execution.
	JobTimeout time.Duration

	// ShutdownTimeout is how long Close waits for running jobs.
	ShutdownTimeout time.Duration

	// RetryBaseDelay and RetryMaxDelay bound the exponential retry delay.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// EnableRecurring starts the recurring job scheduler.
	EnableRecurring bool

	// Configuration provides handlers and recurring jobs. Defaults to Configuration().
	Configuration *GlobalConfiguration

	// Observability defaults to the provider of Configuration.
	Observability observability.Observability

	// OnJobStart runs before a job handler.
	OnJobStart func(job *Job)

	// OnJobComplete runs after a job handler with its duration and result.
	OnJobComplete func(job *Job, duration time.Duration, err error)
}

// DefaultServerOptions returns the default options.
func DefaultServerOptions() *ServerOptions {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "jobkit"
	}

	return &ServerOptions{
		ServerName:           name,
		WorkerCount:          min(runtime.NumCPU()*5, 20),
		Queues:               []string{DefaultQueue},
		PollInterval:         time.Second,
		SchedulePollInterval: 15 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		ServerCheckInterval:  time.Minute,
		ServerTimeout:        5 * time.Minute,
		JobTimeout:           5 * time.Minute,
		ShutdownTimeout:      15 * time.Second,
		RetryBaseDelay:       15 * time.Second,
		RetryMaxDelay:        time.Hour,
		EnableRecurring:      true,
	}
}

// Validate checks the options.
func (o *ServerOptions) Validate() error {
	if o.ServerName == "" {
		return errors.New("server name is required")
	}

	if o.WorkerCount <= 0 {
		return errors.New("worker count must be positive")
	}

	if len(o.Queues) == 0 {
		return errors.New("at least one queue is required")
	}

	for _, q := range o.Queues {
		if q == "" {
			return errors.New("queue names cannot be empty")
		}
	}

	if o.PollInterval <= 0 || o.SchedulePollInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}

	if o.HeartbeatInterval <= 0 || o.ServerCheckInterval <= 0 {
		return errors.New("heartbeat and server check intervals must be positive")
	}

	if o.ServerTimeout <= o.HeartbeatInterval {
		return errors.New("server timeout must be greater than heartbeat interval")
	}

	if o.JobTimeout <= 0 {
		return errors.New("job timeout must be positive")
	}

	if o.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if o.RetryBaseDelay <= 0 || o.RetryMaxDelay < o.RetryBaseDelay {
		return errors.New("retry delays must be positive and max must not be below base")
	}

	return nil
}

func (o *ServerOptions) configuration() *GlobalConfiguration {
	if o.Configuration != nil {
		return o.Configuration
	}
	return Configuration()
}

func (o *ServerOptions) observability() observability.Observability {
	if o.Observability != nil {
		return o.Observability
	}
	return o.configuration().Observability()
}
