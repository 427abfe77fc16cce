package hosting

import (
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
)

const (
	defaultHTTPPort        = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultReadHeaderTime  = 5 * time.Second
	defaultMaxHeaderBytes  = 1 << 20 // 1MB
	defaultShutdownTimeout = 30 * time.Second
)

var defaultSettings = settings{
	port:              defaultHTTPPort,
	readTimeout:       defaultReadTimeout,
	writeTimeout:      defaultWriteTimeout,
	idleTimeout:       defaultIdleTimeout,
	readHeaderTimeout: defaultReadHeaderTime,
	maxHeaderBytes:    defaultMaxHeaderBytes,
	shutdownTimeout:   defaultShutdownTimeout,
}

type (
	// Option configures an Application.
	Option   func(s settings) settings
	settings struct {
		port              string
		readTimeout       time.Duration
		writeTimeout      time.Duration
		idleTimeout       time.Duration
		readHeaderTimeout time.Duration
		maxHeaderBytes    int
		shutdownTimeout   time.Duration
		middlewares       []Middleware
		observability     observability.Observability
	}
)

// WithPort sets the listening port. Use "0" to pick a free port.
// Default: "8080"
func WithPort(port string) Option {
	return func(s settings) settings {
		s.port = port
		return s
	}
}

// WithReadTimeout sets the maximum duration for reading the entire request.
// Default: 15 seconds
func WithReadTimeout(timeout time.Duration) Option {
	return func(s settings) settings {
		s.readTimeout = timeout
		return s
	}
}

// WithWriteTimeout sets the maximum duration before timing out writes of the response.
// Default: 15 seconds
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s settings) settings {
		s.writeTimeout = timeout
		return s
	}
}

// WithIdleTimeout sets the keep-alive idle timeout.
// Default: 60 seconds
func WithIdleTimeout(timeout time.Duration) Option {
	return func(s settings) settings {
		s.idleTimeout = timeout
		return s
	}
}

// WithReadHeaderTimeout sets the amount of time allowed to read request headers.
// Default: 5 seconds
func WithReadHeaderTimeout(timeout time.Duration) Option {
	return func(s settings) settings {
		s.readHeaderTimeout = timeout
		return s
	}
}

// WithMaxHeaderBytes sets the maximum size of request headers.
// Default: 1MB (1 << 20)
func WithMaxHeaderBytes(size int) Option {
	return func(s settings) settings {
		s.maxHeaderBytes = size
		return s
	}
}

// WithShutdownTimeout bounds the graceful shutdown performed by Run.
// Default: 30 seconds
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s settings) settings {
		s.shutdownTimeout = timeout
		return s
	}
}

// WithMiddlewares adds global middlewares, executed in the order given,
// after the built-in request id and recovery middlewares.
func WithMiddlewares(middlewares ...Middleware) Option {
	return func(s settings) settings {
		s.middlewares = append(s.middlewares, middlewares...)
		return s
	}
}

// WithObservability sets the provider used by the host. It is also registered
// in the container unless one is already registered.
func WithObservability(o11y observability.Observability) Option {
	return func(s settings) settings {
		s.observability = o11y
		return s
	}
}
