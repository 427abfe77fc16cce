package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
)

// LifecycleEvent is a notification point that actions can subscribe to.
type LifecycleEvent interface {
	// Register subscribes action. Actions run once, in registration order,
	// when the event fires. Registering after the event fired runs action
	// immediately on the caller's goroutine.
	Register(action func())

	// Done is closed once the event has fired and all actions returned.
	Done() <-chan struct{}
}

// ApplicationLifetime exposes the host lifecycle events.
type ApplicationLifetime interface {
	ApplicationStarted() LifecycleEvent
	ApplicationStopping() LifecycleEvent
	ApplicationStopped() LifecycleEvent

	// StopApplication requests a graceful shutdown by firing ApplicationStopping.
	StopApplication()
}

// Lifetime is the default ApplicationLifetime.
type Lifetime struct {
	logger   observability.Logger
	started  *event
	stopping *event
	stopped  *event
}

// NewLifetime creates a lifetime whose action failures are reported to logger.
func NewLifetime(logger observability.Logger) *Lifetime {
	l := &Lifetime{
		logger: logger,
	}
	l.started = newEvent("started", l.logFailure)
	l.stopping = newEvent("stopping", l.logFailure)
	l.stopped = newEvent("stopped", l.logFailure)
	return l
}

func (l *Lifetime) ApplicationStarted() LifecycleEvent  { return l.started }
func (l *Lifetime) ApplicationStopping() LifecycleEvent { return l.stopping }
func (l *Lifetime) ApplicationStopped() LifecycleEvent  { return l.stopped }

// StopApplication fires ApplicationStopping. Only the first call runs actions.
func (l *Lifetime) StopApplication() {
	l.report(l.stopping)
}

// NotifyStarted fires ApplicationStarted.
func (l *Lifetime) NotifyStarted() {
	l.report(l.started)
}

// NotifyStopped fires ApplicationStopped.
func (l *Lifetime) NotifyStopped() {
	l.report(l.stopped)
}

func (l *Lifetime) report(e *event) {
	if err := e.fire(); err != nil {
		l.logFailure(e.name, err)
	}
}

func (l *Lifetime) logFailure(name string, err error) {
	l.logger.Error(context.Background(), "lifecycle action failed",
		observability.String("event", name),
		observability.Error(err),
	)
}

type event struct {
	name    string
	onError func(name string, err error)
	mu      sync.Mutex
	fired   bool
	actions []func()
	done    chan struct{}
}

func newEvent(name string, onError func(name string, err error)) *event {
	return &event{name: name, onError: onError, done: make(chan struct{})}
}

func (e *event) Register(action func()) {
	if action == nil {
		return
	}

	e.mu.Lock()
	if !e.fired {
		e.actions = append(e.actions, action)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if err := runAction(action); err != nil && e.onError != nil {
		e.onError(e.name, err)
	}
}

func (e *event) Done() <-chan struct{} {
	return e.done
}

// fire runs the registered actions once. Panics are recovered and returned
// joined so one failing action does not prevent the others from running.
func (e *event) fire() error {
	e.mu.Lock()
	if e.fired {
		e.mu.Unlock()
		return nil
	}
	e.fired = true
	actions := e.actions
	e.actions = nil
	e.mu.Unlock()

	defer close(e.done)

	var errs []error
	for _, action := range actions {
		if err := runAction(action); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runAction(action func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lifecycle action panicked: %v", r)
		}
	}()
	action()
	return nil
}
