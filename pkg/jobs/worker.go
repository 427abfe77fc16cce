package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/cenkalti/backoff/v4"
)

type worker struct {
	server *BackgroundJobServer
	name   string
}

func (w *worker) Name() string {
	return w.name
}

func (w *worker) Run(ctx context.Context) error {
	s := w.server
	for {
		if ctx.Err() != nil {
			return nil
		}

		job, err := s.storage.Fetch(ctx, s.opts.Queues, s.id)
		if errors.Is(err, ErrNoJob) {
			if !sleep(ctx, s.opts.PollInterval) {
				return nil
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &ServerError{Op: "fetch", Message: "failed to fetch job", Err: err}
		}

		s.perform(job)
	}
}

type outcome string

const (
	outcomeSucceeded outcome = "succeeded"
	outcomeRetried   outcome = "retried"
	outcomeFailed    outcome = "failed"
	outcomeAborted   outcome = "aborted"
)

// perform runs a fetched job inside a consumer span and records its outcome.
// Storage updates use a context detached from shutdown so the final
// transition is not lost.
func (s *BackgroundJobServer) perform(job *Job) {
	s.activeJobs.Add(1)
	defer s.activeJobs.Add(-1)

	fields := []observability.Field{
		observability.String("job_id", job.ID),
		observability.String("job_type", job.Type),
		observability.String("queue", job.Queue),
		observability.Int("attempt", job.Attempts),
	}

	spanCtx, span := s.tracer.Start(s.aborted, "job "+job.Type,
		observability.WithSpanKind(observability.SpanKindConsumer),
		observability.WithAttributes(
			observability.String("job.id", job.ID),
			observability.String("job.type", job.Type),
			observability.String("job.queue", job.Queue),
			observability.Int("job.attempt", job.Attempts),
			observability.String("server.id", s.id),
		),
	)
	defer span.End()

	persist := context.WithoutCancel(spanCtx)

	s.metrics.busy.Add(persist, 1, observability.String("server", s.opts.ServerName))
	defer s.metrics.busy.Add(persist, -1, observability.String("server", s.opts.ServerName))

	if s.opts.OnJobStart != nil {
		s.opts.OnJobStart(job)
	}

	s.logger.Debug(persist, "job started", fields...)

	start := time.Now()
	ctx, cancel := context.WithTimeout(spanCtx, s.opts.JobTimeout)
	jobErr := s.invoke(ctx, job)
	cancel()
	duration := time.Since(start)

	result, storeErr := s.record(persist, job, jobErr)

	if s.opts.OnJobComplete != nil {
		s.opts.OnJobComplete(job, duration, jobErr)
	}

	s.metrics.processed.Inc(persist,
		observability.String("queue", job.Queue),
		observability.String("job_type", job.Type),
		observability.String("outcome", string(result)),
	)
	s.metrics.duration.Observe(persist, duration.Seconds(),
		observability.String("queue", job.Queue),
		observability.String("job_type", job.Type),
	)

	span.SetAttributes(observability.String("job.outcome", string(result)))
	if jobErr != nil {
		span.RecordError(jobErr)
		span.SetStatus(observability.StatusCodeError, jobErr.Error())
	} else if storeErr == nil {
		span.SetStatus(observability.StatusCodeOK, "")
	}
	if storeErr != nil {
		span.RecordError(storeErr)
		span.SetStatus(observability.StatusCodeError, storeErr.Error())
	}

	fields = append(fields,
		observability.String("outcome", string(result)),
		observability.Duration("duration", duration),
	)
	switch {
	case storeErr != nil:
		s.logger.Error(persist, "failed to record job result", append(fields, observability.Error(storeErr))...)
	case result == outcomeSucceeded:
		s.logger.Info(persist, "job completed", fields...)
	case result == outcomeFailed:
		s.logger.Error(persist, "job failed", append(fields, observability.Error(jobErr))...)
	default:
		s.logger.Warn(persist, "job not completed", append(fields, observability.Error(jobErr))...)
	}
}

func (s *BackgroundJobServer) invoke(ctx context.Context, job *Job) (err error) {
	handler, ok := s.config.Handler(job.Type)
	if !ok {
		return &JobError{JobID: job.ID, Type: job.Type, Op: "perform", Message: "no handler registered", Err: ErrHandlerNotFound}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &JobError{JobID: job.ID, Type: job.Type, Op: "perform", Message: fmt.Sprintf("job panicked: %v", r)}
		}
	}()

	return handler(ctx, job)
}

func (s *BackgroundJobServer) record(ctx context.Context, job *Job, jobErr error) (outcome, error) {
	switch {
	case jobErr == nil:
		return outcomeSucceeded, s.storage.Complete(ctx, job.ID)

	case s.aborted.Err() != nil:
		return outcomeAborted, s.storage.Requeue(ctx, job.ID)

	case job.Attempts <= job.MaxRetries && !IsPermanent(jobErr) && !errors.Is(jobErr, ErrHandlerNotFound):
		retryAt := s.now().UTC().Add(s.retryDelay(job.Attempts))
		return outcomeRetried, s.storage.Fail(ctx, job.ID, jobErr.Error(), &retryAt)

	default:
		return outcomeFailed, s.storage.Fail(ctx, job.ID, jobErr.Error(), nil)
	}
}

// retryDelay returns the exponential delay before retry number attempt,
// bounded by RetryMaxDelay.
func (s *BackgroundJobServer) retryDelay(attempt int) time.Duration {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.RetryBaseDelay
	policy.MaxInterval = s.opts.RetryMaxDelay
	policy.RandomizationFactor = 0.2
	policy.MaxElapsedTime = 0
	policy.Reset()

	delay := policy.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}
