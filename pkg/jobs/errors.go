package jobs

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStorageNotConfigured is returned when no storage was set on the configuration.
	ErrStorageNotConfigured = errors.New("jobs: storage is not configured, call UseStorage")

	// ErrHandlerNotFound is returned when a job type has no registered handler.
	ErrHandlerNotFound = errors.New("jobs: handler not found")

	// ErrRecurringNotFound is returned when a recurring job id is unknown.
	ErrRecurringNotFound = errors.New("jobs: recurring job not found")
)

// ServerError reports a failure of the background job server.
type ServerError struct {
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("server error in %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("server error in %s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServerError) Unwrap() error {
	return e.Err
}

// JobError reports a failure tied to a specific job.
type JobError struct {
	JobID   string
	Type    string
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job error [%s %s] in %s: %s: %v", e.Type, e.JobID, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("job error [%s %s] in %s: %s", e.Type, e.JobID, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *JobError) Unwrap() error {
	return e.Err
}

// ShutdownError is returned by Close when running jobs outlive the shutdown timeout.
type ShutdownError struct {
	Timeout    time.Duration
	ActiveJobs int
}

// Error implements the error interface.
func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown error: timeout after %s with %d active jobs", e.Timeout, e.ActiveJobs)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the server fails the job without retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
