package fake_test

import (
	"context"
	"errors"
	"testing"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/fake"
)

func TestFakeLogger(t *testing.T) {
	provider := fake.NewProvider()
	logger := provider.FakeLogger()

	t.Run("captures entries with child fields", func(t *testing.T) {
		logger.Reset()
		child := provider.Logger().With(observability.String("component", "worker"))
		child.Info(context.Background(), "job completed", observability.String("job", "42"))

		entries := logger.GetEntries()
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		if entries[0].Level != observability.LogLevelInfo {
			t.Errorf("expected info level, got %s", entries[0].Level)
		}
		if v, ok := entries[0].Field("component"); !ok || v != "worker" {
			t.Errorf("expected component field from With, got %v", v)
		}
		if v, ok := entries[0].Field("job"); !ok || v != "42" {
			t.Errorf("expected job field, got %v", v)
		}
	})

	t.Run("HasMessage", func(t *testing.T) {
		logger.Reset()
		provider.Logger().Warn(context.Background(), "slow job")
		if !logger.HasMessage("slow job") {
			t.Error("expected message to be captured")
		}
		if logger.HasMessage("other") {
			t.Error("unexpected message")
		}
	})
}

func TestFakeMetrics(t *testing.T) {
	provider := fake.NewProvider()
	ctx := context.Background()

	counter := provider.Metrics().Counter("jobs_total", "processed jobs", "state")
	counter.Inc(ctx, observability.String("state", "succeeded"))
	counter.Add(ctx, 2, observability.String("state", "failed"))

	got := provider.FakeMetrics().Get("jobs_total")
	if got == nil {
		t.Fatal("expected counter to be registered")
	}
	if got.Value() != 3 {
		t.Errorf("expected value 3, got %v", got.Value())
	}
	if len(got.Observations()) != 2 {
		t.Errorf("expected 2 observations, got %d", len(got.Observations()))
	}

	gauge := provider.Metrics().Gauge("workers", "busy workers")
	gauge.Set(ctx, 5)
	gauge.Add(ctx, -2)
	if v := provider.FakeMetrics().Get("workers").Value(); v != 3 {
		t.Errorf("expected gauge 3, got %v", v)
	}

	if provider.FakeMetrics().Get("missing") != nil {
		t.Error("expected nil for unknown instrument")
	}
}

func TestFakeTracer(t *testing.T) {
	provider := fake.NewProvider()
	tracer := provider.Tracer()

	ctx, parent := tracer.Start(context.Background(), "job.perform",
		observability.WithSpanKind(observability.SpanKindConsumer),
		observability.WithAttributes(observability.String("job.type", "email")),
	)
	_, child := tracer.Start(ctx, "smtp.send")
	child.RecordError(errors.New("timeout"))
	child.End()
	parent.SetStatus(observability.StatusCodeError, "failed")
	parent.End()

	if tracer.SpanFromContext(ctx) != parent {
		t.Fatal("expected the started span to be carried by the context")
	}

	spans := provider.FakeTracer().GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	job, smtp := spans[0], spans[1]
	if job.Kind != observability.SpanKindConsumer || !job.Ended() {
		t.Errorf("unexpected parent span: kind=%v ended=%v", job.Kind, job.Ended())
	}
	if v, ok := job.Attribute("job.type"); !ok || v != "email" {
		t.Errorf("expected job.type attribute, got %v", v)
	}
	if code, _ := job.Status(); code != observability.StatusCodeError {
		t.Errorf("expected error status, got %v", code)
	}
	if smtp.Parent != job || smtp.Context().TraceID() != job.Context().TraceID() {
		t.Error("expected child to share the parent's trace")
	}
	if smtp.Context().SpanID() == job.Context().SpanID() {
		t.Error("expected distinct span ids")
	}
	if errs := smtp.Errors(); len(errs) != 1 || errs[0].Error() != "timeout" {
		t.Errorf("expected recorded timeout error, got %v", errs)
	}
	if len(provider.FakeTracer().SpansNamed("smtp.send")) != 1 {
		t.Error("expected SpansNamed to find the child span")
	}
}
