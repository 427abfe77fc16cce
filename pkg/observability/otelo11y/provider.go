// Package otelo11y implements observability.Observability on OpenTelemetry.
// Logs go to a zap console core and to an OTLP log exporter, spans and
// metrics to OTLP trace and metric exporters. The tracer provider is installed globally so
// instrumented libraries such as otelsql export their spans too.
package otelo11y

import (
	"context"
	"errors"
	"fmt"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/credentials"
)

const instrumentationName = "github.com/JailtonJunior94/jobkit-go"

// Provider is the OpenTelemetry observability provider.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
	console        *zap.Logger
	tracer         *otelTracer
	logger         *otelLogger
	metrics        *otelMetrics
}

// New creates the provider and installs its tracer and meter providers and
// the W3C propagators as the OpenTelemetry globals.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("otelo11y: invalid configuration: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("otelo11y: failed to create resource: %w", err)
	}

	p := &Provider{config: cfg}

	spanExporter, err := p.spanExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("otelo11y: failed to create trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.TraceSampleRate))),
		sdktrace.WithBatcher(spanExporter),
	)

	reader, err := p.metricReader(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("otelo11y: failed to create metric exporter: %w", err), p.tracerProvider.Shutdown(ctx))
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	logExporter, err := p.logExporter(ctx)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("otelo11y: failed to create log exporter: %w", err),
			p.tracerProvider.Shutdown(ctx),
			p.meterProvider.Shutdown(ctx),
		)
	}
	p.loggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)

	otel.SetTracerProvider(p.tracerProvider)
	otel.SetMeterProvider(p.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracer = &otelTracer{tracer: p.tracerProvider.Tracer(instrumentationName)}
	p.console = newConsole(cfg)
	p.logger = &otelLogger{
		console: p.console,
		emitter: p.loggerProvider.Logger(instrumentationName),
		level:   cfg.Level,
	}
	p.metrics = newOtelMetrics(p.meterProvider.Meter(instrumentationName), p.logger)
	return p, nil
}

// Tracer returns a tracer backed by the provider's SDK tracer provider.
func (p *Provider) Tracer() observability.Tracer {
	return p.tracer
}

// Logger returns the console and OTLP logger.
func (p *Provider) Logger() observability.Logger {
	return p.logger
}

// Metrics returns the OTLP metrics.
func (p *Provider) Metrics() observability.Metrics {
	return p.metrics
}

// TracerProvider returns the SDK tracer provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// ForceFlush exports everything buffered so far.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return errors.Join(
		p.tracerProvider.ForceFlush(ctx),
		p.meterProvider.ForceFlush(ctx),
		p.loggerProvider.ForceFlush(ctx),
	)
}

// Shutdown flushes pending telemetry and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := errors.Join(
		p.tracerProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
		p.loggerProvider.Shutdown(ctx),
	)
	// stdout/stderr sync fails on some platforms; console output is unbuffered anyway.
	_ = p.console.Sync()
	if err != nil {
		return fmt.Errorf("otelo11y: shutdown failed: %w", err)
	}
	return nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	}
	for k, v := range cfg.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func (p *Provider) spanExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	cfg := p.config
	if cfg.SpanExporter != nil {
		return cfg.SpanExporter, nil
	}

	if cfg.Protocol == ProtocolHTTP {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.TLSConfig != nil {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(cfg.TLSConfig))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else if cfg.TLSConfig != nil {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(cfg.TLSConfig)))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func (p *Provider) metricReader(ctx context.Context) (sdkmetric.Reader, error) {
	cfg := p.config
	if cfg.MetricReader != nil {
		return cfg.MetricReader, nil
	}

	var (
		exporter sdkmetric.Exporter
		err      error
	)
	if cfg.Protocol == ProtocolHTTP {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else if cfg.TLSConfig != nil {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(cfg.TLSConfig))
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	} else {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else if cfg.TLSConfig != nil {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(cfg.TLSConfig)))
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(exporter), nil
}

func (p *Provider) logExporter(ctx context.Context) (sdklog.Exporter, error) {
	cfg := p.config
	if cfg.LogExporter != nil {
		return cfg.LogExporter, nil
	}

	if cfg.Protocol == ProtocolHTTP {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		} else if cfg.TLSConfig != nil {
			opts = append(opts, otlploghttp.WithTLSClientConfig(cfg.TLSConfig))
		}
		return otlploghttp.New(ctx, opts...)
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	} else if cfg.TLSConfig != nil {
		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(cfg.TLSConfig)))
	}
	return otlploggrpc.New(ctx, opts...)
}
