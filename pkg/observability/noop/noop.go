package noop

import (
	"context"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
)

// Provider returns a no-op implementation of observability that has zero runtime overhead.
// It is the default used by the job engine and the host until one is configured.
type Provider struct {
	tracer  Tracer
	logger  *noopLogger
	metrics *noopMetrics
}

// NewProvider creates a new no-op observability provider.
func NewProvider() *Provider {
	return &Provider{
		tracer:  Tracer{},
		logger:  &noopLogger{},
		metrics: &noopMetrics{},
	}
}

// Tracer returns a tracer that propagates ctx unchanged.
func (p *Provider) Tracer() observability.Tracer {
	return p.tracer
}

// Logger returns a no-op logger.
func (p *Provider) Logger() observability.Logger {
	return p.logger
}

// Metrics returns a no-op metrics recorder.
func (p *Provider) Metrics() observability.Metrics {
	return p.metrics
}

type noopLogger struct{}

func (l *noopLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {}

func (l *noopLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {}

func (l *noopLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {}

func (l *noopLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {}

func (l *noopLogger) With(fields ...observability.Field) observability.Logger {
	return l
}

type noopMetrics struct{}

func (m *noopMetrics) Counter(name, help string, labels ...string) observability.Counter {
	return noopInstrument{}
}

func (m *noopMetrics) Histogram(name, help string, labels ...string) observability.Histogram {
	return noopInstrument{}
}

func (m *noopMetrics) Gauge(name, help string, labels ...string) observability.Gauge {
	return noopInstrument{}
}

// noopInstrument satisfies every metric instrument interface.
type noopInstrument struct{}

func (noopInstrument) Add(ctx context.Context, value float64, fields ...observability.Field) {}

func (noopInstrument) Inc(ctx context.Context, fields ...observability.Field) {}

func (noopInstrument) Observe(ctx context.Context, value float64, fields ...observability.Field) {}

func (noopInstrument) Set(ctx context.Context, value float64, fields ...observability.Field) {}

// Tracer starts non-recording spans. Providers without a tracing backend
// embed it.
type Tracer struct{}

func (Tracer) Start(ctx context.Context, name string, opts ...observability.SpanOption) (context.Context, observability.Span) {
	return ctx, noopSpan{}
}

func (Tracer) SpanFromContext(ctx context.Context) observability.Span {
	return noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End() {}

func (noopSpan) SetAttributes(fields ...observability.Field) {}

func (noopSpan) SetStatus(code observability.StatusCode, description string) {}

func (noopSpan) RecordError(err error, fields ...observability.Field) {}

func (noopSpan) AddEvent(name string, fields ...observability.Field) {}

func (noopSpan) Context() observability.SpanContext {
	return noopSpanContext{}
}

type noopSpanContext struct{}

func (noopSpanContext) TraceID() string { return "" }

func (noopSpanContext) SpanID() string { return "" }

func (noopSpanContext) IsSampled() bool { return false }
