package observability

import "context"

// Tracer starts spans around units of work such as a job execution.
type Tracer interface {
	// Start creates a span as a child of any span already in ctx and returns
	// a context carrying it. Callers must End the span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// SpanFromContext returns the span carried by ctx. When there is none the
	// returned span is non-recording and safe to use.
	SpanFromContext(ctx context.Context) Span
}

// Span is an active trace span.
type Span interface {
	// End finishes the span. Later calls have no effect.
	End()

	SetAttributes(fields ...Field)
	SetStatus(code StatusCode, description string)

	// RecordError adds err as an event. It does not change the status.
	RecordError(err error, fields ...Field)

	AddEvent(name string, fields ...Field)
	Context() SpanContext
}

// SpanContext identifies a span for correlation with logs.
type SpanContext interface {
	TraceID() string
	SpanID() string
	IsSampled() bool
}

// StatusCode is the outcome recorded on a span.
type StatusCode int

const (
	StatusCodeUnset StatusCode = iota
	StatusCodeOK
	StatusCodeError
)

// SpanKind describes the role of a span in a trace.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

// SpanConfig is the result of applying SpanOptions. Providers read it when
// starting a span.
type SpanConfig struct {
	Kind       SpanKind
	Attributes []Field
}

// SpanOption configures a span at start.
type SpanOption func(*SpanConfig)

// WithSpanKind sets the span kind. The default is SpanKindInternal.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(c *SpanConfig) {
		c.Kind = kind
	}
}

// WithAttributes sets attributes on the span at start.
func WithAttributes(fields ...Field) SpanOption {
	return func(c *SpanConfig) {
		c.Attributes = append(c.Attributes, fields...)
	}
}

// NewSpanConfig applies opts over the defaults.
func NewSpanConfig(opts ...SpanOption) SpanConfig {
	cfg := SpanConfig{Kind: SpanKindInternal}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
