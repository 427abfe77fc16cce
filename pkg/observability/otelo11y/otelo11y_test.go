package otelo11y

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(ctx context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(ctx context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(ctx context.Context) error { return nil }

func (e *recordingExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r.Body().AsString())
	}
	return out
}

type harness struct {
	provider *Provider
	output   *bytes.Buffer
	logs     *recordingExporter
	spans    *tracetest.InMemoryExporter
	reader   *sdkmetric.ManualReader
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		output: &bytes.Buffer{},
		logs:   &recordingExporter{},
		spans:  tracetest.NewInMemoryExporter(),
		reader: sdkmetric.NewManualReader(),
	}

	all := append([]Option{
		WithServiceName("otelo11y-test"),
		WithOutput(h.output),
		WithLogExporter(h.logs),
		WithSpanExporter(h.spans),
		WithMetricReader(h.reader),
	}, opts...)

	p, err := New(context.Background(), all...)
	require.NoError(t, err)
	h.provider = p

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return h
}

func (h *harness) collect(t *testing.T, name string) metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q not collected", name)
	return metricdata.Metrics{}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }, "service name is required"},
		{"empty endpoint", func(c *Config) { c.Endpoint = "" }, "otlp endpoint is required"},
		{"unknown protocol", func(c *Config) { c.Protocol = "udp" }, "unsupported otlp protocol"},
		{"sample rate above one", func(c *Config) { c.TraceSampleRate = 1.5 }, "trace sample rate"},
		{"invalid level", func(c *Config) { c.Level = "trace" }, "invalid log level"},
		{"invalid format", func(c *Config) { c.Format = "xml" }, "invalid log format"},
		{"nil output", func(c *Config) { c.Output = nil }, "output cannot be nil"},
		{"insecure in production", func(c *Config) {
			c.Environment = "production"
			c.Insecure = true
		}, "insecure connections are not allowed"},
		{"old tls version", func(c *Config) {
			c.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS11}
		}, "minimum TLS version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseProtocol(t *testing.T) {
	for input, want := range map[string]Protocol{
		"":              ProtocolGRPC,
		"grpc":          ProtocolGRPC,
		"HTTP":          ProtocolHTTP,
		"http/protobuf": ProtocolHTTP,
	} {
		got, err := ParseProtocol(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseProtocol("thrift")
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), WithServiceName(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "otelo11y: invalid configuration")
}

func TestNew_OTLPExporters(t *testing.T) {
	for _, protocol := range []Protocol{ProtocolGRPC, ProtocolHTTP} {
		t.Run(string(protocol), func(t *testing.T) {
			// Exporters connect lazily, so no collector is needed to build them.
			p, err := New(context.Background(),
				WithEndpoint("127.0.0.1:4317", protocol),
				WithInsecure(),
				WithOutput(&bytes.Buffer{}),
			)
			require.NoError(t, err)
			assert.Same(t, p.TracerProvider(), otel.GetTracerProvider())

			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			_ = p.Shutdown(ctx)
		})
	}
}

func TestLogger_ConsoleAndExport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	logger := h.provider.Logger().With(observability.String("component", "worker"))
	logger.Info(ctx, "job succeeded", observability.String("job_id", "01J"), observability.Int("attempt", 2))
	logger.Debug(ctx, "filtered out")
	logger.Error(ctx, "job failed", observability.Error(errors.New("boom")))

	require.NoError(t, h.provider.ForceFlush(ctx))

	assert.Equal(t, []string{"job succeeded", "job failed"}, h.logs.bodies())

	out := h.output.String()
	assert.Contains(t, out, `"msg":"job succeeded"`)
	assert.Contains(t, out, `"component":"worker"`)
	assert.Contains(t, out, `"job_id":"01J"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"service":"otelo11y-test"`)
	assert.NotContains(t, out, "filtered out")

	h.logs.mu.Lock()
	first := h.logs.records[0]
	h.logs.mu.Unlock()
	assert.Equal(t, otellog.SeverityInfo, first.Severity())

	attrs := map[string]string{}
	first.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.String()
		return true
	})
	assert.Equal(t, "worker", attrs["component"])
	assert.Equal(t, "01J", attrs["job_id"])
	assert.Equal(t, "2", attrs["attempt"])
}

func TestLogger_TraceCorrelation(t *testing.T) {
	h := newHarness(t, WithLevel(observability.LogLevelDebug))

	ctx, span := h.provider.TracerProvider().Tracer("test").Start(context.Background(), "perform")
	h.provider.Logger().Debug(ctx, "inside span")
	span.End()

	require.NoError(t, h.provider.ForceFlush(context.Background()))

	spans := h.spans.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "perform", spans[0].Name)

	traceID := spans[0].SpanContext.TraceID().String()
	assert.Contains(t, h.output.String(), `"trace_id":"`+traceID+`"`)

	h.logs.mu.Lock()
	defer h.logs.mu.Unlock()
	require.Len(t, h.logs.records, 1)
	assert.Equal(t, traceID, h.logs.records[0].TraceID().String())
}

func TestTracer_StartsSpans(t *testing.T) {
	h := newHarness(t)
	tracer := h.provider.Tracer()

	ctx, parent := tracer.Start(context.Background(), "job email.send",
		observability.WithSpanKind(observability.SpanKindConsumer),
		observability.WithAttributes(observability.String("job.id", "01J"), observability.Int("job.attempt", 2)),
	)
	_, child := tracer.Start(ctx, "smtp")
	child.End()

	assert.Equal(t, parent.Context().TraceID(), tracer.SpanFromContext(ctx).Context().TraceID())
	assert.True(t, parent.Context().IsSampled())

	parent.RecordError(errors.New("smtp timeout"))
	parent.SetStatus(observability.StatusCodeError, "smtp timeout")
	parent.End()

	require.NoError(t, h.provider.ForceFlush(context.Background()))

	spans := h.spans.GetSpans()
	require.Len(t, spans, 2)
	smtp, job := spans[0], spans[1]

	assert.Equal(t, "job email.send", job.Name)
	assert.Equal(t, trace.SpanKindConsumer, job.SpanKind)
	assert.Equal(t, codes.Error, job.Status.Code)
	assert.Equal(t, "smtp timeout", job.Status.Description)
	assert.Contains(t, job.Attributes, attribute.String("job.id", "01J"))
	assert.Contains(t, job.Attributes, attribute.Int("job.attempt", 2))
	require.Len(t, job.Events, 1)
	assert.Equal(t, "exception", job.Events[0].Name)

	assert.Equal(t, job.SpanContext.SpanID(), smtp.Parent.SpanID())
	assert.Equal(t, job.SpanContext.TraceID().String(), parent.Context().TraceID())
}

func TestTracer_SpanFromEmptyContext(t *testing.T) {
	h := newHarness(t)

	span := h.provider.Tracer().SpanFromContext(context.Background())
	span.SetAttributes(observability.String("k", "v"))
	span.End()

	assert.Empty(t, span.Context().TraceID())
	assert.Empty(t, span.Context().SpanID())
}

func TestMetrics_Counter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := h.provider.Metrics().Counter("jobs_processed_total", "Processed jobs.", "queue", "state")
	c.Inc(ctx, observability.String("queue", "default"), observability.String("state", "succeeded"))
	c.Add(ctx, 2, observability.String("queue", "default"), observability.String("state", "succeeded"))
	c.Inc(ctx, observability.String("queue", "mail"))

	m := h.collect(t, "jobs_processed_total")
	assert.Equal(t, "Processed jobs.", m.Description)

	sum, ok := m.Data.(metricdata.Sum[float64])
	require.True(t, ok)
	assert.True(t, sum.IsMonotonic)

	values := map[string]float64{}
	for _, dp := range sum.DataPoints {
		queue, _ := dp.Attributes.Value("queue")
		state, _ := dp.Attributes.Value("state")
		values[queue.AsString()+"/"+state.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]float64{"default/succeeded": 3, "mail/": 1}, values)
}

func TestMetrics_Histogram(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	hist := h.provider.Metrics().Histogram("job_duration_seconds", "Job duration.", "type")
	hist.Observe(ctx, 0.2, observability.String("type", "email"))
	hist.Observe(ctx, 0.4, observability.String("type", "email"))

	data, ok := h.collect(t, "job_duration_seconds").Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, uint64(2), data.DataPoints[0].Count)
	assert.InDelta(t, 0.6, data.DataPoints[0].Sum, 1e-9)
}

func TestMetrics_Gauge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	g := h.provider.Metrics().Gauge("workers_busy", "Busy workers.", "server")
	server := observability.String("server", "s1")
	g.Set(ctx, 5, server)
	g.Add(ctx, 2, server)
	g.Add(ctx, -4, server)

	data, ok := h.collect(t, "workers_busy").Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, float64(3), data.DataPoints[0].Value)
}

func TestMetrics_SameNameReusesInstrument(t *testing.T) {
	h := newHarness(t)
	m := h.provider.Metrics()

	first := m.Gauge("queue_length", "Queue length.", "queue")
	second := m.Gauge("queue_length", "Queue length.", "queue")
	assert.Same(t, first, second)

	// A different kind under the same name is disabled and reported.
	c := m.Counter("queue_length", "Queue length.")
	assert.IsType(t, discard{}, c)
	assert.Contains(t, h.output.String(), "metric disabled")
}
