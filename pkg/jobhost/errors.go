package jobhost

import (
	"errors"
	"fmt"
)

// ErrMissingServices is wrapped by InvalidOperationError when a required
// registration is absent from the service container.
var ErrMissingServices = errors.New("unable to find the required services")

// ArgumentError reports a missing or malformed argument.
type ArgumentError struct {
	Param   string
	Message string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("jobhost: argument %s cannot be empty", e.Param)
	}
	return fmt.Sprintf("jobhost: invalid argument %s: %s", e.Param, e.Message)
}

// InvalidOperationError reports an incomplete application setup.
type InvalidOperationError struct {
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *InvalidOperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jobhost: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("jobhost: %s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause.
func (e *InvalidOperationError) Unwrap() error {
	return e.Err
}

const missingSetupMessage = "add the required services by calling jobhost.AddJobs on the service collection before building the application"

func missingSetup(op string) error {
	return &InvalidOperationError{Op: op, Message: missingSetupMessage, Err: ErrMissingServices}
}
