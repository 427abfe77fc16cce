package observability

import "context"

// Metrics creates metric instruments. Label names are fixed when the
// instrument is created; fields passed on each observation are matched to
// labels by key and missing labels are recorded as empty strings.
//
// Creating an instrument twice with the same name returns the existing one.
type Metrics interface {
	// Counter creates or returns a monotonically increasing counter.
	Counter(name, help string, labels ...string) Counter

	// Histogram creates or returns a histogram. Durations are recorded in seconds.
	Histogram(name, help string, labels ...string) Histogram

	// Gauge creates or returns a gauge.
	Gauge(name, help string, labels ...string) Gauge
}

// Counter is a monotonically increasing metric.
type Counter interface {
	// Add increases the counter. value must not be negative.
	Add(ctx context.Context, value float64, fields ...Field)
	Inc(ctx context.Context, fields ...Field)
}

// Histogram records a distribution of values.
type Histogram interface {
	Observe(ctx context.Context, value float64, fields ...Field)
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	Set(ctx context.Context, value float64, fields ...Field)

	// Add moves the gauge by value, which may be negative.
	Add(ctx context.Context, value float64, fields ...Field)
}
