package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
)

// Provider implements a fake observability provider for testing purposes.
// It captures all operations so they can be inspected in tests.
type Provider struct {
	tracer  *FakeTracer
	logger  *FakeLogger
	metrics *FakeMetrics
}

// NewProvider creates a new fake observability provider for testing.
func NewProvider() *Provider {
	return &Provider{
		tracer:  NewFakeTracer(),
		logger:  NewFakeLogger(),
		metrics: NewFakeMetrics(),
	}
}

// Tracer returns the fake tracer.
func (p *Provider) Tracer() observability.Tracer {
	return p.tracer
}

// Logger returns the fake logger.
func (p *Provider) Logger() observability.Logger {
	return p.logger
}

// Metrics returns the fake metrics recorder.
func (p *Provider) Metrics() observability.Metrics {
	return p.metrics
}

// FakeTracer returns the concrete tracer for assertions.
func (p *Provider) FakeTracer() *FakeTracer {
	return p.tracer
}

// FakeLogger returns the concrete logger for assertions.
func (p *Provider) FakeLogger() *FakeLogger {
	return p.logger
}

// FakeMetrics returns the concrete metrics recorder for assertions.
func (p *Provider) FakeMetrics() *FakeMetrics {
	return p.metrics
}

// LogEntry represents a captured log entry.
type LogEntry struct {
	Level     observability.LogLevel
	Message   string
	Fields    []observability.Field
	Timestamp time.Time
}

// Field returns the value of the first field named key.
func (e LogEntry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// FakeLogger captures all log operations for test assertions.
// Child loggers created by With share the parent's entries.
type FakeLogger struct {
	mu      *sync.RWMutex
	entries *[]LogEntry
	fields  []observability.Field
}

// NewFakeLogger creates a new fake logger.
func NewFakeLogger() *FakeLogger {
	entries := make([]LogEntry, 0)
	return &FakeLogger{
		mu:      &sync.RWMutex{},
		entries: &entries,
	}
}

func (l *FakeLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.record(observability.LogLevelDebug, msg, fields)
}

func (l *FakeLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.record(observability.LogLevelInfo, msg, fields)
}

func (l *FakeLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.record(observability.LogLevelWarn, msg, fields)
}

func (l *FakeLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.record(observability.LogLevelError, msg, fields)
}

// With creates a child logger with additional fields.
func (l *FakeLogger) With(fields ...observability.Field) observability.Logger {
	merged := make([]observability.Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &FakeLogger{
		mu:      l.mu,
		entries: l.entries,
		fields:  merged,
	}
}

func (l *FakeLogger) record(level observability.LogLevel, msg string, fields []observability.Field) {
	all := make([]observability.Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)

	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, LogEntry{
		Level:     level,
		Message:   msg,
		Fields:    all,
		Timestamp: time.Now(),
	})
}

// GetEntries returns all captured log entries.
func (l *FakeLogger) GetEntries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]LogEntry, len(*l.entries))
	copy(result, *l.entries)
	return result
}

// HasMessage reports whether any entry was logged with msg.
func (l *FakeLogger) HasMessage(msg string) bool {
	for _, e := range l.GetEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// Reset clears all captured log entries.
func (l *FakeLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = make([]LogEntry, 0)
}

// FakeMetrics captures every observation keyed by instrument name.
type FakeMetrics struct {
	mu          sync.RWMutex
	instruments map[string]*FakeInstrument
}

// NewFakeMetrics creates a new fake metrics recorder.
func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{
		instruments: make(map[string]*FakeInstrument),
	}
}

func (m *FakeMetrics) Counter(name, help string, labels ...string) observability.Counter {
	return m.instrument(name, help, labels)
}

func (m *FakeMetrics) Histogram(name, help string, labels ...string) observability.Histogram {
	return m.instrument(name, help, labels)
}

func (m *FakeMetrics) Gauge(name, help string, labels ...string) observability.Gauge {
	return m.instrument(name, help, labels)
}

func (m *FakeMetrics) instrument(name, help string, labels []string) *FakeInstrument {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, exists := m.instruments[name]; exists {
		return i
	}

	i := &FakeInstrument{Name: name, Help: help, Labels: labels}
	m.instruments[name] = i
	return i
}

// Get returns an instrument by name, or nil when it was never created.
func (m *FakeMetrics) Get(name string) *FakeInstrument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instruments[name]
}

// Observation represents one captured metric update.
type Observation struct {
	Value  float64
	Fields []observability.Field
}

// FakeInstrument captures updates for any instrument kind.
type FakeInstrument struct {
	mu           sync.RWMutex
	Name         string
	Help         string
	Labels       []string
	observations []Observation
	current      float64
}

func (i *FakeInstrument) Add(ctx context.Context, value float64, fields ...observability.Field) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.current += value
	i.observations = append(i.observations, Observation{Value: value, Fields: fields})
}

func (i *FakeInstrument) Inc(ctx context.Context, fields ...observability.Field) {
	i.Add(ctx, 1, fields...)
}

func (i *FakeInstrument) Observe(ctx context.Context, value float64, fields ...observability.Field) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.observations = append(i.observations, Observation{Value: value, Fields: fields})
}

func (i *FakeInstrument) Set(ctx context.Context, value float64, fields ...observability.Field) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.current = value
	i.observations = append(i.observations, Observation{Value: value, Fields: fields})
}

// Value returns the accumulated counter or gauge value.
func (i *FakeInstrument) Value() float64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.current
}

// Observations returns all captured updates.
func (i *FakeInstrument) Observations() []Observation {
	i.mu.RLock()
	defer i.mu.RUnlock()
	result := make([]Observation, len(i.observations))
	copy(result, i.observations)
	return result
}

type spanKey struct{}

// FakeTracer records every span it starts. Spans are carried in the returned
// context, so children point at their parent and share its trace id.
type FakeTracer struct {
	mu     sync.RWMutex
	spans  []*FakeSpan
	nextID int
}

// NewFakeTracer creates a new fake tracer.
func NewFakeTracer() *FakeTracer {
	return &FakeTracer{}
}

func (t *FakeTracer) Start(ctx context.Context, name string, opts ...observability.SpanOption) (context.Context, observability.Span) {
	cfg := observability.NewSpanConfig(opts...)
	parent, _ := ctx.Value(spanKey{}).(*FakeSpan)

	t.mu.Lock()
	t.nextID++
	span := &FakeSpan{
		Name:       name,
		Kind:       cfg.Kind,
		Parent:     parent,
		spanID:     fmt.Sprintf("%016x", t.nextID),
		traceID:    fmt.Sprintf("%032x", t.nextID),
		attributes: append([]observability.Field(nil), cfg.Attributes...),
	}
	if parent != nil {
		span.traceID = parent.traceID
	}
	t.spans = append(t.spans, span)
	t.mu.Unlock()

	return context.WithValue(ctx, spanKey{}, span), span
}

// SpanFromContext returns the span started into ctx, or an unrecorded empty
// span when there is none.
func (t *FakeTracer) SpanFromContext(ctx context.Context) observability.Span {
	if span, ok := ctx.Value(spanKey{}).(*FakeSpan); ok {
		return span
	}
	return &FakeSpan{}
}

// GetSpans returns all started spans in start order.
func (t *FakeTracer) GetSpans() []*FakeSpan {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result := make([]*FakeSpan, len(t.spans))
	copy(result, t.spans)
	return result
}

// SpansNamed returns the started spans called name.
func (t *FakeTracer) SpansNamed(name string) []*FakeSpan {
	var result []*FakeSpan
	for _, s := range t.GetSpans() {
		if s.Name == name {
			result = append(result, s)
		}
	}
	return result
}

// Reset forgets all captured spans.
func (t *FakeTracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = nil
}

// SpanEvent is an event or a recorded error captured on a span.
type SpanEvent struct {
	Name   string
	Err    error
	Fields []observability.Field
}

// FakeSpan captures span operations. Name, Kind and Parent are fixed at start.
type FakeSpan struct {
	Name   string
	Kind   observability.SpanKind
	Parent *FakeSpan

	mu          sync.RWMutex
	traceID     string
	spanID      string
	attributes  []observability.Field
	status      observability.StatusCode
	description string
	events      []SpanEvent
	ended       bool
}

func (s *FakeSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *FakeSpan) SetAttributes(fields ...observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes = append(s.attributes, fields...)
}

func (s *FakeSpan) SetStatus(code observability.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
	s.description = description
}

func (s *FakeSpan) RecordError(err error, fields ...observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, SpanEvent{Name: "exception", Err: err, Fields: fields})
}

func (s *FakeSpan) AddEvent(name string, fields ...observability.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, SpanEvent{Name: name, Fields: fields})
}

func (s *FakeSpan) Context() observability.SpanContext {
	return fakeSpanContext{traceID: s.traceID, spanID: s.spanID}
}

// Ended reports whether End was called.
func (s *FakeSpan) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}

// Status returns the last status set on the span.
func (s *FakeSpan) Status() (observability.StatusCode, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.description
}

// Attribute returns the value of the last attribute named key.
func (s *FakeSpan) Attribute(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.attributes) - 1; i >= 0; i-- {
		if s.attributes[i].Key == key {
			return s.attributes[i].Value, true
		}
	}
	return nil, false
}

// Events returns the captured events and errors in order.
func (s *FakeSpan) Events() []SpanEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]SpanEvent, len(s.events))
	copy(result, s.events)
	return result
}

// Errors returns the errors recorded with RecordError.
func (s *FakeSpan) Errors() []error {
	var errs []error
	for _, e := range s.Events() {
		if e.Err != nil {
			errs = append(errs, e.Err)
		}
	}
	return errs
}

type fakeSpanContext struct {
	traceID string
	spanID  string
}

func (c fakeSpanContext) TraceID() string { return c.traceID }

func (c fakeSpanContext) SpanID() string { return c.spanID }

func (c fakeSpanContext) IsSampled() bool { return c.traceID != "" }
