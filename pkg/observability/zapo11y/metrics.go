package zapo11y

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

type promMetrics struct {
	namespace  string
	registerer prometheus.Registerer
	logger     observability.Logger

	mu         sync.Mutex
	collectors map[string]prometheus.Collector
}

func newPromMetrics(namespace string, registerer prometheus.Registerer, logger observability.Logger) *promMetrics {
	return &promMetrics{
		namespace:  namespace,
		registerer: registerer,
		logger:     logger,
		collectors: make(map[string]prometheus.Collector),
	}
}

func (m *promMetrics) Counter(name, help string, labels ...string) observability.Counter {
	c, err := m.register(name, func() prometheus.Collector {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: m.namespace, Name: name, Help: help}, labels)
	})
	vec, ok := c.(*prometheus.CounterVec)
	if err != nil || !ok {
		m.reportInvalid(name, err)
		return discard{}
	}
	return &counter{vec: vec, labels: labels}
}

func (m *promMetrics) Histogram(name, help string, labels ...string) observability.Histogram {
	c, err := m.register(name, func() prometheus.Collector {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      help,
			Buckets:   prometheus.DefBuckets,
		}, labels)
	})
	vec, ok := c.(*prometheus.HistogramVec)
	if err != nil || !ok {
		m.reportInvalid(name, err)
		return discard{}
	}
	return &histogram{vec: vec, labels: labels}
}

func (m *promMetrics) Gauge(name, help string, labels ...string) observability.Gauge {
	c, err := m.register(name, func() prometheus.Collector {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: m.namespace, Name: name, Help: help}, labels)
	})
	vec, ok := c.(*prometheus.GaugeVec)
	if err != nil || !ok {
		m.reportInvalid(name, err)
		return discard{}
	}
	return &gauge{vec: vec, labels: labels}
}

// register returns the collector already created under name or registers a new one.
func (m *promMetrics) register(name string, build func() prometheus.Collector) (prometheus.Collector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.collectors[name]; ok {
		return c, nil
	}

	c := build()
	if err := m.registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		c = are.ExistingCollector
	}

	m.collectors[name] = c
	return c, nil
}

func (m *promMetrics) reportInvalid(name string, err error) {
	if err == nil {
		err = fmt.Errorf("metric %q already registered with a different type", name)
	}
	m.logger.Warn(context.Background(), "metric disabled",
		observability.String("metric", name),
		observability.Error(err),
	)
}

// labelValues orders field values by label name; missing labels become "".
func labelValues(labels []string, fields []observability.Field) []string {
	values := make([]string, len(labels))
	for i, label := range labels {
		for _, f := range fields {
			if f.Key == label {
				values[i] = fmt.Sprint(f.Value)
				break
			}
		}
	}
	return values
}

type counter struct {
	vec    *prometheus.CounterVec
	labels []string
}

func (c *counter) Add(ctx context.Context, value float64, fields ...observability.Field) {
	c.vec.WithLabelValues(labelValues(c.labels, fields)...).Add(value)
}

func (c *counter) Inc(ctx context.Context, fields ...observability.Field) {
	c.Add(ctx, 1, fields...)
}

type histogram struct {
	vec    *prometheus.HistogramVec
	labels []string
}

func (h *histogram) Observe(ctx context.Context, value float64, fields ...observability.Field) {
	h.vec.WithLabelValues(labelValues(h.labels, fields)...).Observe(value)
}

type gauge struct {
	vec    *prometheus.GaugeVec
	labels []string
}

func (g *gauge) Set(ctx context.Context, value float64, fields ...observability.Field) {
	g.vec.WithLabelValues(labelValues(g.labels, fields)...).Set(value)
}

func (g *gauge) Add(ctx context.Context, value float64, fields ...observability.Field) {
	g.vec.WithLabelValues(labelValues(g.labels, fields)...).Add(value)
}

type discard struct{}

func (discard) Add(ctx context.Context, value float64, fields ...observability.Field)     {}
func (discard) Inc(ctx context.Context, fields ...observability.Field)                    {}
func (discard) Observe(ctx context.Context, value float64, fields ...observability.Field) {}
func (discard) Set(ctx context.Context, value float64, fields ...observability.Field)     {}
