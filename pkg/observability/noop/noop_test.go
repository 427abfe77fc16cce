package noop_test

import (
	"context"
	"errors"
	"testing"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
)

func TestNoopProvider(t *testing.T) {
	var provider observability.Observability = noop.NewProvider()

	if provider.Tracer() == nil {
		t.Fatal("Tracer() should not return nil")
	}
	if provider.Logger() == nil {
		t.Fatal("Logger() should not return nil")
	}
	if provider.Metrics() == nil {
		t.Fatal("Metrics() should not return nil")
	}
}

func TestNoopLoggerAndMetricsDoNotPanic(t *testing.T) {
	ctx := context.Background()
	provider := noop.NewProvider()

	logger := provider.Logger().With(observability.String("component", "test"))
	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info", observability.Int("n", 1))
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error", observability.Error(errors.New("boom")))

	metrics := provider.Metrics()
	metrics.Counter("jobs_total", "jobs", "state").Inc(ctx, observability.String("state", "ok"))
	metrics.Histogram("job_duration_seconds", "duration").Observe(ctx, 0.5)
	metrics.Gauge("workers", "workers").Set(ctx, 3)
}

func TestNoopTracerKeepsContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	tracer := noop.NewProvider().Tracer()

	spanCtx, span := tracer.Start(ctx, "work", observability.WithSpanKind(observability.SpanKindConsumer))
	defer span.End()

	if spanCtx.Value(key{}) != "v" {
		t.Fatal("Start should return the caller's context")
	}
	span.SetAttributes(observability.String("k", "v"))
	span.RecordError(errors.New("boom"))
	span.SetStatus(observability.StatusCodeError, "boom")
	span.AddEvent("retry")

	if sc := tracer.SpanFromContext(spanCtx).Context(); sc.TraceID() != "" || sc.IsSampled() {
		t.Fatal("noop spans must not carry trace ids")
	}
}
