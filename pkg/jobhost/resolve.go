package jobhost

import (
	"errors"
	"fmt"

	"github.com/JailtonJunior94/jobkit-go/pkg/hosting"
)

// resolveOptional returns explicit when set, else the container
// registration, else fallback().
func resolveOptional[T comparable](explicit T, sp hosting.ServiceProvider, fallback func() T) (T, error) {
	var zero T
	if explicit != zero {
		return explicit, nil
	}

	service, ok, err := hosting.GetService[T](sp)
	if err != nil {
		return zero, err
	}
	if ok && service != zero {
		return service, nil
	}
	return fallback(), nil
}

// resolveRequired returns explicit when set, else the container registration.
func resolveRequired[T comparable](explicit T, sp hosting.ServiceProvider) (T, error) {
	var zero T
	if explicit != zero {
		return explicit, nil
	}
	return hosting.GetRequiredService[T](sp)
}

func unresolved(op, what string, err error) error {
	if errors.Is(err, hosting.ErrServiceNotRegistered) {
		err = fmt.Errorf("%w: %w", ErrMissingServices, err)
	}
	return &InvalidOperationError{
		Op:      op,
		Message: "unable to resolve " + what,
		Err:     err,
	}
}
