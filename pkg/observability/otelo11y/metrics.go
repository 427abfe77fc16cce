package otelo11y

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type otelMetrics struct {
	meter  metric.Meter
	logger observability.Logger

	mu          sync.Mutex
	instruments map[string]any
}

func newOtelMetrics(meter metric.Meter, logger observability.Logger) *otelMetrics {
	return &otelMetrics{
		meter:       meter,
		logger:      logger,
		instruments: make(map[string]any),
	}
}

func (m *otelMetrics) Counter(name, help string, labels ...string) observability.Counter {
	i, err := m.instrument(name, func() (any, error) {
		c, err := m.meter.Float64Counter(name, metric.WithDescription(help))
		if err != nil {
			return nil, err
		}
		return &counter{inst: c, labels: labels}, nil
	})
	c, ok := i.(*counter)
	if err != nil || !ok {
		m.reportInvalid(name, err)
		return discard{}
	}
	return c
}

func (m *otelMetrics) Histogram(name, help string, labels ...string) observability.Histogram {
	i, err := m.instrument(name, func() (any, error) {
		h, err := m.meter.Float64Histogram(name, metric.WithDescription(help))
		if err != nil {
			return nil, err
		}
		return &histogram{inst: h, labels: labels}, nil
	})
	h, ok := i.(*histogram)
	if err != nil || !ok {
		m.reportInvalid(name, err)
		return discard{}
	}
	return h
}

func (m *otelMetrics) Gauge(name, help string, labels ...string) observability.Gauge {
	i, err := m.instrument(name, func() (any, error) {
		g, err := m.meter.Float64Gauge(name, metric.WithDescription(help))
		if err != nil {
			return nil, err
		}
		return &gauge{inst: g, labels: labels, current: make(map[attribute.Distinct]float64)}, nil
	})
	g, ok := i.(*gauge)
	if err != nil || !ok {
		m.reportInvalid(name, err)
		return discard{}
	}
	return g
}

func (m *otelMetrics) instrument(name string, build func() (any, error)) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.instruments[name]; ok {
		return i, nil
	}
	i, err := build()
	if err != nil {
		return nil, err
	}
	m.instruments[name] = i
	return i, nil
}

func (m *otelMetrics) reportInvalid(name string, err error) {
	if err == nil {
		err = fmt.Errorf("metric %q already registered with a different type", name)
	}
	m.logger.Warn(context.Background(), "metric disabled",
		observability.String("metric", name),
		observability.Error(err),
	)
}

// attributeSet orders field values by label name; missing labels become "".
func attributeSet(labels []string, fields []observability.Field) attribute.Set {
	attrs := make([]attribute.KeyValue, len(labels))
	for i, label := range labels {
		attrs[i] = attribute.String(label, "")
		for _, f := range fields {
			if f.Key == label {
				attrs[i] = labelValue(label, f.Value)
				break
			}
		}
	}
	return attribute.NewSet(attrs...)
}

func labelValue(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case time.Duration:
		return attribute.String(key, v.String())
	case error:
		return attribute.String(key, v.Error())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}

type counter struct {
	inst   metric.Float64Counter
	labels []string
}

func (c *counter) Add(ctx context.Context, value float64, fields ...observability.Field) {
	set := attributeSet(c.labels, fields)
	c.inst.Add(ctx, value, metric.WithAttributeSet(set))
}

func (c *counter) Inc(ctx context.Context, fields ...observability.Field) {
	c.Add(ctx, 1, fields...)
}

type histogram struct {
	inst   metric.Float64Histogram
	labels []string
}

func (h *histogram) Observe(ctx context.Context, value float64, fields ...observability.Field) {
	set := attributeSet(h.labels, fields)
	h.inst.Record(ctx, value, metric.WithAttributeSet(set))
}

// gauge keeps the last value per attribute set so Add can be expressed on
// top of the synchronous OpenTelemetry gauge, which only records values.
type gauge struct {
	inst   metric.Float64Gauge
	labels []string

	mu      sync.Mutex
	current map[attribute.Distinct]float64
}

func (g *gauge) Set(ctx context.Context, value float64, fields ...observability.Field) {
	set := attributeSet(g.labels, fields)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.current[set.Equivalent()] = value
	g.inst.Record(ctx, value, metric.WithAttributeSet(set))
}

func (g *gauge) Add(ctx context.Context, value float64, fields ...observability.Field) {
	set := attributeSet(g.labels, fields)

	g.mu.Lock()
	defer g.mu.Unlock()
	next := g.current[set.Equivalent()] + value
	g.current[set.Equivalent()] = next
	g.inst.Record(ctx, next, metric.WithAttributeSet(set))
}

type discard struct{}

func (discard) Add(ctx context.Context, value float64, fields ...observability.Field)     {}
func (discard) Inc(ctx context.Context, fields ...observability.Field)                    {}
func (discard) Observe(ctx context.Context, value float64, fields ...observability.Field) {}
func (discard) Set(ctx context.Context, value float64, fields ...observability.Field)     {}
