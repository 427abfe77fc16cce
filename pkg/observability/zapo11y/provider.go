// Package zapo11y implements observability.Observability with a zap logger and
// prometheus metrics.
package zapo11y

import (
	"fmt"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Provider is the production observability provider.
type Provider struct {
	zap      *zap.Logger
	logger   *zapLogger
	metrics  *promMetrics
	registry *prometheus.Registry
}

// New creates a provider from the default configuration and the given options.
func New(opts ...Option) (*Provider, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("zapo11y: invalid configuration: %w", err)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	base := zap.New(
		zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(cfg.Output), toZapLevel(cfg.Level)),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	).With(zap.String("service", cfg.ServiceName))

	logger := &zapLogger{zap: base}

	return &Provider{
		zap:      base,
		logger:   logger,
		metrics:  newPromMetrics(cfg.MetricsNamespace, registry, logger),
		registry: registry,
	}, nil
}

// Tracer returns a non-recording tracer. Use otelo11y to export traces.
func (p *Provider) Tracer() observability.Tracer {
	return noop.Tracer{}
}

// Logger returns the zap-backed logger.
func (p *Provider) Logger() observability.Logger {
	return p.logger
}

// Metrics returns the prometheus-backed metrics.
func (p *Provider) Metrics() observability.Metrics {
	return p.metrics
}

// Registry returns the registry that holds the provider's collectors.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// Sync flushes buffered log entries.
func (p *Provider) Sync() error {
	return p.zap.Sync()
}

func newEncoder(format observability.LogFormat) zapcore.Encoder {
	if format == observability.LogFormatText {
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

func toZapLevel(level observability.LogLevel) zapcore.Level {
	switch level {
	case observability.LogLevelDebug:
		return zapcore.DebugLevel
	case observability.LogLevelWarn:
		return zapcore.WarnLevel
	case observability.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
