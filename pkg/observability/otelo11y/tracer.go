package otelo11y

import (
	"context"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type otelTracer struct {
	tracer trace.Tracer
}

func (t *otelTracer) Start(ctx context.Context, name string, opts ...observability.SpanOption) (context.Context, observability.Span) {
	cfg := observability.NewSpanConfig(opts...)

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(spanKind(cfg.Kind))}
	if attrs := toAttributes(cfg.Attributes); len(attrs) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(attrs...))
	}

	ctx, span := t.tracer.Start(ctx, name, startOpts...)
	return ctx, otelSpan{span: span}
}

// SpanFromContext wraps whatever span ctx carries, including spans started
// by otelhttp or otelfiber.
func (t *otelTracer) SpanFromContext(ctx context.Context) observability.Span {
	return otelSpan{span: trace.SpanFromContext(ctx)}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End() {
	s.span.End()
}

func (s otelSpan) SetAttributes(fields ...observability.Field) {
	if attrs := toAttributes(fields); len(attrs) > 0 {
		s.span.SetAttributes(attrs...)
	}
}

func (s otelSpan) SetStatus(code observability.StatusCode, description string) {
	s.span.SetStatus(statusCode(code), description)
}

func (s otelSpan) RecordError(err error, fields ...observability.Field) {
	if err == nil {
		return
	}
	s.span.RecordError(err, trace.WithAttributes(toAttributes(fields)...))
}

func (s otelSpan) AddEvent(name string, fields ...observability.Field) {
	s.span.AddEvent(name, trace.WithAttributes(toAttributes(fields)...))
}

func (s otelSpan) Context() observability.SpanContext {
	return spanContext{sc: s.span.SpanContext()}
}

type spanContext struct {
	sc trace.SpanContext
}

func (c spanContext) TraceID() string {
	if !c.sc.HasTraceID() {
		return ""
	}
	return c.sc.TraceID().String()
}

func (c spanContext) SpanID() string {
	if !c.sc.HasSpanID() {
		return ""
	}
	return c.sc.SpanID().String()
}

func (c spanContext) IsSampled() bool {
	return c.sc.IsSampled()
}

func toAttributes(fields []observability.Field) []attribute.KeyValue {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, labelValue(f.Key, f.Value))
	}
	return attrs
}

func spanKind(kind observability.SpanKind) trace.SpanKind {
	switch kind {
	case observability.SpanKindServer:
		return trace.SpanKindServer
	case observability.SpanKindClient:
		return trace.SpanKindClient
	case observability.SpanKindProducer:
		return trace.SpanKindProducer
	case observability.SpanKindConsumer:
		return trace.SpanKindConsumer
	default:
		return trace.SpanKindInternal
	}
}

func statusCode(code observability.StatusCode) codes.Code {
	switch code {
	case observability.StatusCodeOK:
		return codes.Ok
	case observability.StatusCodeError:
		return codes.Error
	default:
		return codes.Unset
	}
}
