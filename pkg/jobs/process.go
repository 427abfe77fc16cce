package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/cenkalti/backoff/v4"
)

// BackgroundProcess is a long-running loop hosted by a BackgroundJobServer.
// Run must return when ctx is cancelled. A process that returns an error
// before shutdown is restarted with exponential backoff.
type BackgroundProcess interface {
	Name() string
	Run(ctx context.Context) error
}

// ProcessFunc adapts a function to BackgroundProcess.
type ProcessFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewProcess creates a BackgroundProcess from fn.
func NewProcess(name string, fn func(ctx context.Context) error) *ProcessFunc {
	return &ProcessFunc{name: name, fn: fn}
}

// Name returns the process name.
func (p *ProcessFunc) Name() string {
	return p.name
}

// Run executes the function.
func (p *ProcessFunc) Run(ctx context.Context) error {
	return p.fn(ctx)
}

func (s *BackgroundJobServer) supervise(ctx context.Context, p BackgroundProcess) {
	defer s.wg.Done()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0

	operation := func() error {
		err := runProcess(ctx, p)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			return nil
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		s.metrics.restarts.Inc(ctx, observability.String("process", p.Name()))
		s.logger.Warn(ctx, "background process failed, restarting",
			observability.String("process", p.Name()),
			observability.Duration("backoff", next),
			observability.Error(err),
		)
	}

	_ = backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
}

func runProcess(ctx context.Context, p BackgroundProcess) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ServerError{Op: "process", Message: fmt.Sprintf("%s panicked: %v", p.Name(), r)}
		}
	}()
	return p.Run(ctx)
}

// every runs fn immediately and then on every tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(ctx context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// sleep waits for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
