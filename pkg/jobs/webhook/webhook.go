// Package webhook provides a job handler that delivers a job's payload to an
// HTTP endpoint. Client errors fail the job permanently; network errors,
// 408, 429 and 5xx responses are returned as retryable errors.
//
//	cfg.Handle("http", webhook.Handler(o11y, webhook.WithTimeout(10*time.Second)))
//
// Job arguments:
//
//	{"url": "https://example.com/hook", "method": "POST", "headers": {"X-Key": "v"}, "body": {...}}
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultTimeout bounds a single delivery.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps the request body built from the job arguments.
	DefaultMaxBodySize = 1 * 1024 * 1024

	// maxDrainSize caps how much of a response is read before closing it.
	maxDrainSize = 64 * 1024
)

// ErrBodyTooLarge is returned when the encoded body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("webhook: request body exceeds maximum allowed size")

// Request is the job argument shape.
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// StatusError reports an unexpected response status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the delivery should be retried.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

type settings struct {
	timeout     time.Duration
	maxBodySize int64
	headers     map[string]string
	transport   http.RoundTripper
}

// Option configures the handler.
type Option func(*settings)

// WithTimeout sets the per delivery timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithMaxBodySize sets the request body limit.
func WithMaxBodySize(size int64) Option {
	return func(s *settings) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithHeader adds a header to every delivery. Job headers take precedence.
func WithHeader(key, value string) Option {
	return func(s *settings) {
		s.headers[key] = value
	}
}

// WithTransport sets the base transport, wrapped with client tracing.
func WithTransport(transport http.RoundTripper) Option {
	return func(s *settings) {
		s.transport = transport
	}
}

// Handler returns a job handler delivering the job's Request.
func Handler(o11y observability.Observability, opts ...Option) jobs.HandlerFunc {
	s := settings{
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		headers:     make(map[string]string),
		transport:   http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if o11y == nil {
		o11y = noop.NewProvider()
	}

	d := &deliverer{
		settings: s,
		client:   &http.Client{Timeout: s.timeout, Transport: otelhttp.NewTransport(s.transport)},
		logger:   o11y.Logger().With(observability.String("component", "webhook")),
		requests: o11y.Metrics().Counter("webhook_requests_total", "Webhook deliveries by outcome.", "method", "outcome"),
		duration: o11y.Metrics().Histogram("webhook_request_duration_seconds", "Webhook delivery duration.", "method"),
	}
	return d.handle
}

type deliverer struct {
	settings
	client   *http.Client
	logger   observability.Logger
	requests observability.Counter
	duration observability.Histogram
}

func (d *deliverer) handle(ctx context.Context, job *jobs.Job) error {
	var req Request
	if err := job.Bind(&req); err != nil {
		return jobs.Permanent(fmt.Errorf("webhook: invalid arguments: %w", err))
	}

	httpReq, err := d.newRequest(ctx, req)
	if err != nil {
		return jobs.Permanent(err)
	}
	httpReq.Header.Set("X-Job-ID", job.ID)

	start := time.Now()
	resp, err := d.client.Do(httpReq)

	// Metrics must survive a cancelled job context.
	metricsCtx := context.WithoutCancel(ctx)
	method := observability.String("method", httpReq.Method)
	d.duration.Observe(metricsCtx, time.Since(start).Seconds(), method)

	if err != nil {
		d.requests.Inc(metricsCtx, method, observability.String("outcome", "error"))
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer d.drain(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.requests.Inc(metricsCtx, method, observability.String("outcome", "success"))
		d.logger.Debug(ctx, "webhook delivered",
			observability.String("job_id", job.ID),
			observability.Int("status", resp.StatusCode),
		)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	if statusErr.Retryable() {
		d.requests.Inc(metricsCtx, method, observability.String("outcome", "retry"))
		return statusErr
	}

	d.requests.Inc(metricsCtx, method, observability.String("outcome", "rejected"))
	return jobs.Permanent(statusErr)
}

func (d *deliverer) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target, err := url.Parse(req.URL)
	if err != nil || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, fmt.Errorf("webhook: invalid url %q", req.URL)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if len(req.Body) > 0 {
		if int64(len(req.Body)) > d.maxBodySize {
			return nil, ErrBodyTooLarge
		}
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("webhook: failed to build request: %w", err)
	}

	for k, v := range d.headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// drain reads a bounded amount of the body so the connection can be reused.
func (d *deliverer) drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))
	_ = resp.Body.Close()
}
