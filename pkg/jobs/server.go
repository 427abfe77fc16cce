package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/oklog/ulid/v2"
)

// BackgroundJobServer runs workers and housekeeping processes against a
// storage. It starts processing as soon as it is created.
type BackgroundJobServer struct {
	id      string
	opts    *ServerOptions
	storage Storage
	config  *GlobalConfiguration
	tracer  observability.Tracer
	logger  observability.Logger
	metrics *serverMetrics
	now     func() time.Time

	cancel context.CancelFunc
	abort  context.CancelFunc
	// aborted is cancelled when running jobs must stop.
	aborted context.Context
	wg      sync.WaitGroup

	activeJobs atomic.Int32

	closeOnce sync.Once
	closeErr  error
}

// NewBackgroundJobServer validates opts, announces the server to storage and
// starts the workers, the housekeeping processes and processes. A nil opts
// uses DefaultServerOptions.
func NewBackgroundJobServer(opts *ServerOptions, storage Storage, processes []BackgroundProcess) (*BackgroundJobServer, error) {
	if opts == nil {
		opts = DefaultServerOptions()
	}

	if err := opts.Validate(); err != nil {
		return nil, &ServerError{Op: "new", Message: "invalid options", Err: err}
	}

	if storage == nil {
		return nil, &ServerError{Op: "new", Message: "storage is required", Err: ErrStorageNotConfigured}
	}

	o11y := opts.observability()
	id := fmt.Sprintf("%s:%s", opts.ServerName, strings.ToLower(ulid.Make().String()))

	s := &BackgroundJobServer{
		id:      id,
		opts:    opts,
		storage: storage,
		config:  opts.configuration(),
		tracer:  o11y.Tracer(),
		logger:  o11y.Logger().With(observability.String("server_id", id)),
		metrics: newServerMetrics(o11y.Metrics()),
		now:     time.Now,
	}

	ctx := context.Background()
	if err := storage.AnnounceServer(ctx, s.info()); err != nil {
		return nil, &ServerError{Op: "new", Message: "failed to announce server", Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.aborted, s.abort = context.WithCancel(ctx)

	all := make([]BackgroundProcess, 0, opts.WorkerCount+4+len(processes))
	for i := range opts.WorkerCount {
		all = append(all, &worker{server: s, name: fmt.Sprintf("worker #%d", i+1)})
	}
	all = append(all,
		NewProcess("scheduler", s.promoteScheduled),
		NewProcess("heartbeat", s.heartbeat),
		NewProcess("watchdog", s.removeDeadServers),
	)
	if opts.EnableRecurring {
		all = append(all, newRecurringProcess(s))
	}
	for _, p := range processes {
		if p != nil {
			all = append(all, p)
		}
	}

	for _, p := range all {
		s.wg.Add(1)
		go s.supervise(runCtx, p)
	}

	s.logger.Info(ctx, "background job server started",
		observability.String("server_name", opts.ServerName),
		observability.Int("workers", opts.WorkerCount),
		observability.String("queues", strings.Join(opts.Queues, ",")),
		observability.Int("processes", len(all)),
	)

	return s, nil
}

// ID returns the server id recorded in storage.
func (s *BackgroundJobServer) ID() string {
	return s.id
}

// ActiveJobs returns the number of jobs currently running.
func (s *BackgroundJobServer) ActiveJobs() int {
	return int(s.activeJobs.Load())
}

// Close stops fetching, waits up to ShutdownTimeout for running jobs, aborts
// the remaining ones and removes the server record. Every call returns the
// result of the first.
func (s *BackgroundJobServer) Close() error {
	s.closeOnce.Do(func() {
		ctx := context.Background()
		s.logger.Info(ctx, "stopping background job server", observability.Int("active_jobs", s.ActiveJobs()))

		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		timer := time.NewTimer(s.opts.ShutdownTimeout)
		defer timer.Stop()

		var errs []error
		select {
		case <-done:
		case <-timer.C:
			active := s.ActiveJobs()
			s.logger.Warn(ctx, "shutdown timeout reached, aborting running jobs",
				observability.Duration("timeout", s.opts.ShutdownTimeout),
				observability.Int("active_jobs", active),
			)
			errs = append(errs, &ShutdownError{Timeout: s.opts.ShutdownTimeout, ActiveJobs: active})
		}
		s.abort()

		removeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.storage.RemoveServer(removeCtx, s.id); err != nil {
			errs = append(errs, &ServerError{Op: "close", Message: "failed to remove server record", Err: err})
		}

		s.closeErr = errors.Join(errs...)
		s.logger.Info(ctx, "background job server stopped")
	})
	return s.closeErr
}

func (s *BackgroundJobServer) info() ServerInfo {
	now := s.now().UTC()
	return ServerInfo{
		ID:          s.id,
		Name:        s.opts.ServerName,
		Queues:      append([]string(nil), s.opts.Queues...),
		WorkerCount: s.opts.WorkerCount,
		StartedAt:   now,
		HeartbeatAt: now,
	}
}

func (s *BackgroundJobServer) promoteScheduled(ctx context.Context) error {
	return every(ctx, s.opts.SchedulePollInterval, func(ctx context.Context) error {
		n, err := s.storage.EnqueueDue(ctx, s.now().UTC())
		if err != nil {
			return &ServerError{Op: "scheduler", Message: "failed to enqueue due jobs", Err: err}
		}
		if n > 0 {
			s.metrics.promoted.Add(ctx, float64(n))
			s.logger.Debug(ctx, "scheduled jobs enqueued", observability.Int("count", n))
		}
		return nil
	})
}

func (s *BackgroundJobServer) heartbeat(ctx context.Context) error {
	return every(ctx, s.opts.HeartbeatInterval, func(ctx context.Context) error {
		err := s.storage.Heartbeat(ctx, s.id, s.now().UTC())
		if errors.Is(err, ErrServerNotFound) {
			// removed by another server's watchdog; come back
			s.logger.Warn(ctx, "server record missing, announcing again")
			err = s.storage.AnnounceServer(ctx, s.info())
		}
		if err != nil {
			return &ServerError{Op: "heartbeat", Message: "failed to send heartbeat", Err: err}
		}
		return nil
	})
}

func (s *BackgroundJobServer) removeDeadServers(ctx context.Context) error {
	return every(ctx, s.opts.ServerCheckInterval, func(ctx context.Context) error {
		n, err := s.storage.RemoveTimedOutServers(ctx, s.opts.ServerTimeout, s.now().UTC())
		if err != nil {
			return &ServerError{Op: "watchdog", Message: "failed to remove timed out servers", Err: err}
		}
		if n > 0 {
			s.metrics.removed.Add(ctx, float64(n))
			s.logger.Info(ctx, "timed out servers removed", observability.Int("count", n))
		}
		return nil
	})
}
