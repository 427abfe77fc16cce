package otelo11y

import (
	"crypto/tls"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Protocol selects the OTLP transport.
type Protocol string

const (
	// ProtocolGRPC exports over gRPC (default port 4317).
	ProtocolGRPC Protocol = "grpc"
	// ProtocolHTTP exports over HTTP/protobuf (default port 4318).
	ProtocolHTTP Protocol = "http"
)

// ParseProtocol accepts "grpc", "http" and "http/protobuf". Empty means gRPC.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "grpc", "":
		return ProtocolGRPC, nil
	case "http", "http/protobuf":
		return ProtocolHTTP, nil
	default:
		return "", errors.New("unsupported otlp protocol: " + s)
	}
}

// Config holds the OpenTelemetry provider configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Endpoint is the collector address. Default: localhost:4317
	Endpoint string
	Protocol Protocol

	// Insecure disables TLS. Rejected when Environment is production.
	Insecure  bool
	TLSConfig *tls.Config

	// TraceSampleRate is between 0 and 1. Default: 1
	TraceSampleRate float64

	Level  observability.LogLevel
	Format observability.LogFormat

	// Output receives console log entries. Default: os.Stdout
	Output io.Writer

	ResourceAttributes map[string]string

	// Exporter overrides, mostly for tests. When set the OTLP exporter of
	// that signal is not created.
	SpanExporter sdktrace.SpanExporter
	MetricReader sdkmetric.Reader
	LogExporter  sdklog.Exporter
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:     "jobkit",
		ServiceVersion:  "unknown",
		Environment:     "development",
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		TraceSampleRate: 1.0,
		Level:           observability.LogLevelInfo,
		Format:          observability.LogFormatJSON,
		Output:          os.Stdout,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	if c.Endpoint == "" {
		return errors.New("otlp endpoint is required")
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return errors.New("unsupported otlp protocol: " + string(c.Protocol))
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return errors.New("trace sample rate must be between 0 and 1")
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

	env := strings.ToLower(c.Environment)
	if c.Insecure && (env == "production" || env == "prod") {
		return errors.New("insecure connections are not allowed in production environment")
	}
	if c.TLSConfig != nil && c.TLSConfig.MinVersion > 0 && c.TLSConfig.MinVersion < tls.VersionTLS12 {
		return errors.New("minimum TLS version must be 1.2 or higher")
	}
	return nil
}

// Option configures the provider.
type Option func(*Config)

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(c *Config) { c.ServiceName = name }
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(c *Config) { c.ServiceVersion = version }
}

// WithEnvironment sets the deployment environment.
func WithEnvironment(env string) Option {
	return func(c *Config) { c.Environment = env }
}

// WithEndpoint sets the collector endpoint and protocol.
func WithEndpoint(endpoint string, protocol Protocol) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
		c.Protocol = protocol
	}
}

// WithInsecure disables TLS towards the collector.
func WithInsecure() Option {
	return func(c *Config) { c.Insecure = true }
}

// WithTLSConfig sets a custom TLS configuration.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Config) { c.TLSConfig = cfg }
}

// WithTraceSampleRate sets the ratio of sampled traces.
func WithTraceSampleRate(rate float64) Option {
	return func(c *Config) { c.TraceSampleRate = rate }
}

// WithLevel sets the minimum log level.
func WithLevel(level observability.LogLevel) Option {
	return func(c *Config) { c.Level = level }
}

// WithFormat sets the console log format.
func WithFormat(format observability.LogFormat) Option {
	return func(c *Config) { c.Format = format }
}

// WithOutput sets the console log writer.
func WithOutput(w io.Writer) Option {
	return func(c *Config) { c.Output = w }
}

// WithResourceAttributes adds resource attributes.
func WithResourceAttributes(attrs map[string]string) Option {
	return func(c *Config) { c.ResourceAttributes = attrs }
}

// WithSpanExporter replaces the OTLP trace exporter.
func WithSpanExporter(exporter sdktrace.SpanExporter) Option {
	return func(c *Config) { c.SpanExporter = exporter }
}

// WithMetricReader replaces the periodic OTLP metric reader.
func WithMetricReader(reader sdkmetric.Reader) Option {
	return func(c *Config) { c.MetricReader = reader }
}

// WithLogExporter replaces the OTLP log exporter.
func WithLogExporter(exporter sdklog.Exporter) Option {
	return func(c *Config) { c.LogExporter = exporter }
}
