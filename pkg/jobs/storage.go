package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoJob is returned by Fetch when no job is ready in the requested queues.
	ErrNoJob = errors.New("jobs: no job available")

	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("jobs: job not found")

	// ErrServerNotFound is returned when a server id does not exist.
	ErrServerNotFound = errors.New("jobs: server not found")

	// ErrInvalidTransition is returned when a job cannot move to the requested state.
	ErrInvalidTransition = errors.New("jobs: invalid state transition")
)

// Storage persists jobs and server records. Implementations must be safe for
// concurrent use; Fetch must hand each enqueued job to exactly one caller.
type Storage interface {
	// Create stores a new job. ID, State and timestamps are set by the caller.
	Create(ctx context.Context, job *Job) error

	// Fetch atomically moves the oldest enqueued job of the first non-empty
	// queue (in the given order) to processing, owned by serverID, and
	// increments its attempt counter.
	Fetch(ctx context.Context, queues []string, serverID string) (*Job, error)

	// Complete marks a processing job as succeeded.
	Complete(ctx context.Context, id string) error

	// Fail records reason on a processing job. A non-nil retryAt schedules
	// the job again; otherwise the job becomes failed.
	Fail(ctx context.Context, id string, reason string, retryAt *time.Time) error

	// Requeue moves a job back to enqueued regardless of its state.
	Requeue(ctx context.Context, id string) error

	// Delete marks a job as deleted.
	Delete(ctx context.Context, id string) error

	// Get returns a job by id or ErrJobNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// List returns jobs in state, newest first. An empty state lists every job.
	List(ctx context.Context, state State, offset, limit int) ([]*Job, error)

	// Stats counts jobs per state and registered servers.
	Stats(ctx context.Context) (Stats, error)

	// EnqueueDue moves scheduled jobs whose time is at or before now to
	// enqueued and returns how many moved.
	EnqueueDue(ctx context.Context, now time.Time) (int, error)

	// AnnounceServer creates or replaces a server record.
	AnnounceServer(ctx context.Context, server ServerInfo) error

	// Heartbeat refreshes a server record or returns ErrServerNotFound.
	Heartbeat(ctx context.Context, serverID string, at time.Time) error

	// RemoveServer deletes a server record. Removing an unknown server is not an error.
	RemoveServer(ctx context.Context, serverID string) error

	// Servers lists registered servers ordered by id.
	Servers(ctx context.Context) ([]ServerInfo, error)

	// RemoveTimedOutServers deletes servers whose last heartbeat is older
	// than now minus timeout and requeues the jobs they were processing.
	RemoveTimedOutServers(ctx context.Context, timeout time.Duration, now time.Time) (int, error)

	// Ping checks storage connectivity.
	Ping(ctx context.Context) error
}
