package hosting

import (
	"fmt"
	"reflect"
	"sync"
)

// ServiceDescriptor is a single container registration: either a ready
// instance or a factory evaluated lazily on first resolution.
type ServiceDescriptor struct {
	Type     reflect.Type
	Instance any
	Factory  func(sp ServiceProvider) (any, error)
}

// Singleton describes an instance registered under the type T.
func Singleton[T any](instance T) ServiceDescriptor {
	return ServiceDescriptor{
		Type:     reflect.TypeFor[T](),
		Instance: instance,
	}
}

// Factory describes a lazily built singleton registered under the type T.
// The factory runs until it first succeeds; failed attempts are not cached.
func Factory[T any](factory func(sp ServiceProvider) (T, error)) ServiceDescriptor {
	return ServiceDescriptor{
		Type: reflect.TypeFor[T](),
		Factory: func(sp ServiceProvider) (any, error) {
			return factory(sp)
		},
	}
}

// ServiceCollection accumulates registrations before the provider is built.
// It is not safe for concurrent use.
type ServiceCollection struct {
	descriptors []ServiceDescriptor
}

// NewServiceCollection creates an empty collection.
func NewServiceCollection() *ServiceCollection {
	return &ServiceCollection{}
}

// Add appends registrations. Later registrations of the same type take
// precedence for single resolution and are all returned by GetServices.
func (c *ServiceCollection) Add(descriptors ...ServiceDescriptor) *ServiceCollection {
	c.descriptors = append(c.descriptors, descriptors...)
	return c
}

// Contains reports whether at least one registration exists for serviceType.
func (c *ServiceCollection) Contains(serviceType reflect.Type) bool {
	for _, d := range c.descriptors {
		if d.Type == serviceType {
			return true
		}
	}
	return false
}

// Len returns the number of registrations.
func (c *ServiceCollection) Len() int {
	return len(c.descriptors)
}

// Build freezes the registrations into a provider. Later changes to the
// collection do not affect providers already built.
func (c *ServiceCollection) Build() ServiceProvider {
	p := &provider{entries: make(map[reflect.Type][]*entry, len(c.descriptors))}
	for _, d := range c.descriptors {
		p.entries[d.Type] = append(p.entries[d.Type], &entry{descriptor: d})
	}
	return p
}

// AddSingleton registers instance under the type T.
func AddSingleton[T any](c *ServiceCollection, instance T) *ServiceCollection {
	return c.Add(Singleton(instance))
}

// AddFactory registers a lazily built singleton under the type T.
func AddFactory[T any](c *ServiceCollection, factory func(sp ServiceProvider) (T, error)) *ServiceCollection {
	return c.Add(Factory(factory))
}

// ServiceProvider resolves registered services.
type ServiceProvider interface {
	// GetService returns the last registration for serviceType.
	// The error wraps ErrServiceNotRegistered when nothing is registered.
	GetService(serviceType reflect.Type) (any, error)

	// GetServices returns every registration for serviceType in registration order.
	GetServices(serviceType reflect.Type) ([]any, error)
}

type entry struct {
	descriptor ServiceDescriptor
	mu         sync.Mutex
	done       bool
	value      any
}

type provider struct {
	entries map[reflect.Type][]*entry
}

func (p *provider) GetService(serviceType reflect.Type) (any, error) {
	entries := p.entries[serviceType]
	if len(entries) == 0 {
		return nil, &ServiceError{Type: serviceType, Err: ErrServiceNotRegistered}
	}
	return p.resolve(entries[len(entries)-1])
}

func (p *provider) GetServices(serviceType reflect.Type) ([]any, error) {
	entries := p.entries[serviceType]
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		v, err := p.resolve(e)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (p *provider) resolve(e *entry) (any, error) {
	if e.descriptor.Factory == nil {
		return e.descriptor.Instance, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.value, nil
	}

	value, err := e.descriptor.Factory(p)
	if err != nil {
		return nil, &ServiceError{Type: e.descriptor.Type, Err: err}
	}
	e.value, e.done = value, true
	return value, nil
}

// GetService resolves an optional service. ok is false when T is not
// registered; err is set only when a registration exists but cannot be resolved.
func GetService[T any](sp ServiceProvider) (service T, ok bool, err error) {
	v, err := sp.GetService(reflect.TypeFor[T]())
	if err != nil {
		if isNotRegistered(err) {
			return service, false, nil
		}
		return service, false, err
	}

	service, err = cast[T](v)
	if err != nil {
		return service, false, err
	}
	return service, true, nil
}

// GetRequiredService resolves a service that must be registered.
func GetRequiredService[T any](sp ServiceProvider) (T, error) {
	var zero T

	v, err := sp.GetService(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return cast[T](v)
}

// GetServices resolves every registration of T in registration order.
func GetServices[T any](sp ServiceProvider) ([]T, error) {
	values, err := sp.GetServices(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}

	services := make([]T, 0, len(values))
	for _, v := range values {
		s, err := cast[T](v)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, nil
}

func cast[T any](v any) (T, error) {
	s, ok := v.(T)
	if !ok {
		return s, &ServiceError{
			Type: reflect.TypeFor[T](),
			Err:  fmt.Errorf("registered value has type %T", v),
		}
	}
	return s, nil
}

func isNotRegistered(err error) bool {
	se, ok := err.(*ServiceError)
	return ok && se.Err == ErrServiceNotRegistered
}
