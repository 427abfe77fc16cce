package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
	"github.com/robfig/cron/v3"
)

// HandlerFunc executes a job. The context is cancelled when the job times out
// or when the server aborts it during shutdown.
type HandlerFunc func(ctx context.Context, job *Job) error

// ConfigureFunc applies process-wide settings to a configuration.
type ConfigureFunc func(cfg *GlobalConfiguration)

// recurringParser accepts five-field specs, an optional leading seconds field
// and descriptors such as @hourly or @every 10m.
var recurringParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// RecurringJob enqueues a job of Type on every tick of Spec.
type RecurringJob struct {
	ID         string          `json:"id"`
	Spec       string          `json:"spec"`
	Type       string          `json:"type"`
	Queue      string          `json:"queue"`
	Args       json.RawMessage `json:"args,omitempty"`
	MaxRetries int             `json:"max_retries"`

	schedule cron.Schedule
}

// Next returns the first activation after t.
func (r RecurringJob) Next(t time.Time) time.Time {
	if r.schedule == nil {
		return time.Time{}
	}
	return r.schedule.Next(t)
}

// GlobalConfiguration holds process-wide engine settings: the storage, the
// observability provider, job handlers and recurring jobs.
type GlobalConfiguration struct {
	mu        sync.RWMutex
	storage   Storage
	o11y      observability.Observability
	handlers  map[string]HandlerFunc
	recurring map[string]RecurringJob
}

var global = NewConfiguration()

// Configuration returns the process-wide configuration.
func Configuration() *GlobalConfiguration {
	return global
}

// NewConfiguration creates an isolated configuration, mostly useful in tests.
func NewConfiguration() *GlobalConfiguration {
	return &GlobalConfiguration{
		handlers:  make(map[string]HandlerFunc),
		recurring: make(map[string]RecurringJob),
	}
}

// UseStorage sets the storage used by Enqueue and by servers without an explicit one.
func (c *GlobalConfiguration) UseStorage(storage Storage) *GlobalConfiguration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage = storage
	return c
}

// Storage returns the configured storage or ErrStorageNotConfigured.
func (c *GlobalConfiguration) Storage() (Storage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.storage == nil {
		return nil, ErrStorageNotConfigured
	}
	return c.storage, nil
}

// UseObservability sets the default observability provider.
func (c *GlobalConfiguration) UseObservability(o11y observability.Observability) *GlobalConfiguration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.o11y = o11y
	return c
}

// Observability returns the configured provider, or a no-op one.
func (c *GlobalConfiguration) Observability() observability.Observability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.o11y == nil {
		return noop.NewProvider()
	}
	return c.o11y
}

// Handle registers the handler for jobType, replacing any previous one.
// It panics if jobType is empty or handler is nil.
func (c *GlobalConfiguration) Handle(jobType string, handler HandlerFunc) *GlobalConfiguration {
	if strings.TrimSpace(jobType) == "" {
		panic("jobs: empty job type")
	}
	if handler == nil {
		panic("jobs: nil handler for " + jobType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
	return c
}

// Handler returns the handler registered for jobType.
func (c *GlobalConfiguration) Handler(jobType string) (HandlerFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[jobType]
	return h, ok
}

// HandlerTypes returns the registered job types, sorted.
func (c *GlobalConfiguration) HandlerTypes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	types := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// AddOrUpdateRecurring registers a recurring job under id. Only OnQueue and
// WithMaxRetries are honoured among opts.
func (c *GlobalConfiguration) AddOrUpdateRecurring(id, spec, jobType string, args any, opts ...EnqueueOption) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("jobs: recurring job id is required")
	}
	if strings.TrimSpace(jobType) == "" {
		return fmt.Errorf("jobs: recurring job %q: job type is required", id)
	}

	schedule, err := recurringParser.Parse(spec)
	if err != nil {
		return fmt.Errorf("jobs: recurring job %q: invalid cron spec %q: %w", id, spec, err)
	}

	raw, err := marshalArgs(args)
	if err != nil {
		return fmt.Errorf("jobs: recurring job %q: %w", id, err)
	}

	o := newEnqueueOptions(opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recurring[id] = RecurringJob{
		ID:         id,
		Spec:       spec,
		Type:       jobType,
		Queue:      o.queue,
		Args:       raw,
		MaxRetries: o.maxRetries,
		schedule:   schedule,
	}
	return nil
}

// RemoveRecurring unregisters a recurring job. Unknown ids are ignored.
func (c *GlobalConfiguration) RemoveRecurring(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.recurring, id)
}

// Recurring returns the recurring job registered under id.
func (c *GlobalConfiguration) Recurring(id string) (RecurringJob, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.recurring[id]
	return r, ok
}

// RecurringJobs returns every recurring job ordered by id.
func (c *GlobalConfiguration) RecurringJobs() []RecurringJob {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := make([]RecurringJob, 0, len(c.recurring))
	for _, r := range c.recurring {
		list = append(list, r)
	}
	slices.SortFunc(list, func(a, b RecurringJob) int {
		return strings.Compare(a.ID, b.ID)
	})
	return list
}
