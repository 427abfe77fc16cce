package zapo11y

import (
	"errors"
	"io"
	"os"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the zap/prometheus provider configuration.
type Config struct {
	// ServiceName is attached to every log entry as "service".
	ServiceName string

	// Level is the minimum log level. Default: info
	Level observability.LogLevel

	// Format selects the zap encoder. Default: json
	Format observability.LogFormat

	// Output receives encoded log entries. Default: os.Stdout
	Output io.Writer

	// MetricsNamespace prefixes every metric name. Default: "jobkit"
	MetricsNamespace string

	// Registry receives the metric collectors. A private registry is created when nil.
	Registry *prometheus.Registry
}

// DefaultConfig returns the default provider configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:      "jobkit",
		Level:            observability.LogLevelInfo,
		Format:           observability.LogFormatJSON,
		Output:           os.Stdout,
		MetricsNamespace: "jobkit",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}

	switch c.Level {
	case observability.LogLevelDebug, observability.LogLevelInfo, observability.LogLevelWarn, observability.LogLevelError:
	default:
		return errors.New("invalid log level: " + string(c.Level))
	}

	switch c.Format {
	case observability.LogFormatJSON, observability.LogFormatText:
	default:
		return errors.New("invalid log format: " + string(c.Format))
	}

	if c.Output == nil {
		return errors.New("output cannot be nil")
	}

	return nil
}

// Option configures the provider.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level observability.LogLevel) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithFormat sets the log format.
func WithFormat(format observability.LogFormat) Option {
	return func(c *Config) {
		c.Format = format
	}
}

// WithOutput sets the log destination.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		c.Output = w
	}
}

// WithMetricsNamespace sets the metric namespace.
func WithMetricsNamespace(namespace string) Option {
	return func(c *Config) {
		c.MetricsNamespace = namespace
	}
}

// WithRegistry sets the prometheus registry used for metrics.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}
