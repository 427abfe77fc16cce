package hosting

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrServiceNotRegistered is returned when no registration exists for a service type.
	ErrServiceNotRegistered = errors.New("service not registered")

	// ErrRouteConflict is returned when a path prefix is mapped twice.
	ErrRouteConflict = errors.New("path already mapped")

	// ErrAlreadyRunning is returned by Start when the application is already serving.
	ErrAlreadyRunning = errors.New("application already running")
)

// ServiceError describes a failed service resolution.
type ServiceError struct {
	Type reflect.Type // Requested service type
	Err  error        // Underlying cause
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("hosting: unable to resolve service %s: %v", typeName(e.Type), e.Err)
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
