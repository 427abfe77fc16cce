package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
	"github.com/oklog/ulid/v2"
)

// EnqueueOption customizes a single enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue      string
	maxRetries int
	delay      time.Duration
	at         *time.Time
}

func newEnqueueOptions(opts []EnqueueOption) enqueueOptions {
	o := enqueueOptions{
		queue:      DefaultQueue,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// OnQueue places the job in queue.
func OnQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if q := strings.TrimSpace(queue); q != "" {
			o.queue = q
		}
	}
}

// WithMaxRetries sets how many times a failing job is retried.
func WithMaxRetries(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// ScheduleIn delays the job by d.
func ScheduleIn(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		o.delay = d
		o.at = nil
	}
}

// ScheduleAt runs the job no earlier than t.
func ScheduleAt(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.at = &t
		o.delay = 0
	}
}

// Client creates jobs in a storage.
type Client struct {
	storage Storage
	logger  observability.Logger
	now     func() time.Time
}

// NewClient creates a client over storage. A nil o11y disables logging.
func NewClient(storage Storage, o11y observability.Observability) *Client {
	if o11y == nil {
		o11y = noop.NewProvider()
	}
	return &Client{
		storage: storage,
		logger:  o11y.Logger(),
		now:     time.Now,
	}
}

// Enqueue creates a job of jobType with args encoded as JSON.
func (c *Client) Enqueue(ctx context.Context, jobType string, args any, opts ...EnqueueOption) (*Job, error) {
	if c.storage == nil {
		return nil, ErrStorageNotConfigured
	}

	job, err := c.newJob(jobType, args, newEnqueueOptions(opts))
	if err != nil {
		return nil, err
	}

	if err := c.storage.Create(ctx, job); err != nil {
		return nil, &JobError{JobID: job.ID, Type: jobType, Op: "enqueue", Message: "failed to store job", Err: err}
	}

	c.logger.Debug(ctx, "job enqueued",
		observability.String("job_id", job.ID),
		observability.String("job_type", job.Type),
		observability.String("queue", job.Queue),
		observability.String("state", string(job.State)),
	)
	return job, nil
}

// Trigger enqueues an immediate run of a recurring job.
func (c *Client) Trigger(ctx context.Context, recurring RecurringJob) (*Job, error) {
	return c.Enqueue(ctx, recurring.Type, recurring.Args,
		OnQueue(recurring.Queue),
		WithMaxRetries(recurring.MaxRetries),
	)
}

func (c *Client) newJob(jobType string, args any, o enqueueOptions) (*Job, error) {
	if strings.TrimSpace(jobType) == "" {
		return nil, fmt.Errorf("jobs: job type is required")
	}

	raw, err := marshalArgs(args)
	if err != nil {
		return nil, &JobError{Type: jobType, Op: "enqueue", Message: "invalid job arguments", Err: err}
	}

	now := c.now().UTC()
	job := &Job{
		ID:         ulid.Make().String(),
		Type:       jobType,
		Queue:      o.queue,
		Args:       raw,
		State:      StateEnqueued,
		MaxRetries: o.maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var at time.Time
	switch {
	case o.at != nil:
		at = o.at.UTC()
	case o.delay > 0:
		at = now.Add(o.delay)
	}
	if at.After(now) {
		job.State = StateScheduled
		job.ScheduledAt = &at
	}
	return job, nil
}

// Enqueue creates a job in the storage of the process-wide configuration.
func Enqueue(ctx context.Context, jobType string, args any, opts ...EnqueueOption) (*Job, error) {
	storage, err := Configuration().Storage()
	if err != nil {
		return nil, err
	}
	return NewClient(storage, Configuration().Observability()).Enqueue(ctx, jobType, args, opts...)
}

func marshalArgs(args any) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	if raw, ok := args.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("marshal args: invalid raw JSON")
		}
		return append(json.RawMessage(nil), raw...), nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return raw, nil
}
