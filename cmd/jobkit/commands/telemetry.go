package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/otelo11y"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/zapo11y"
	"github.com/prometheus/client_golang/prometheus"
)

const telemetryFlushTimeout = 5 * time.Second

// telemetry is the observability provider picked by the configuration.
type telemetry struct {
	observability.Observability

	// gatherer is nil when metrics are pushed over OTLP.
	gatherer prometheus.Gatherer
	tracing  bool
	shutdown func(ctx context.Context) error
}

func newObservability(ctx context.Context, cfg *Config) (*telemetry, error) {
	level := observability.LogLevel(cfg.Log.Level)
	format := observability.LogFormat(cfg.Log.Format)

	if cfg.Telemetry.Exporter == "otlp" {
		protocol, err := otelo11y.ParseProtocol(cfg.Telemetry.Protocol)
		if err != nil {
			return nil, err
		}

		opts := []otelo11y.Option{
			otelo11y.WithServiceName("jobkit"),
			otelo11y.WithServiceVersion(Version),
			otelo11y.WithEnvironment(cfg.Telemetry.Environment),
			otelo11y.WithEndpoint(cfg.Telemetry.Endpoint, protocol),
			otelo11y.WithTraceSampleRate(cfg.Telemetry.SampleRate),
			otelo11y.WithLevel(level),
			otelo11y.WithFormat(format),
			otelo11y.WithOutput(os.Stderr),
		}
		if cfg.Telemetry.Insecure {
			opts = append(opts, otelo11y.WithInsecure())
		}

		provider, err := otelo11y.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return &telemetry{Observability: provider, tracing: true, shutdown: provider.Shutdown}, nil
	}

	provider, err := zapo11y.New(
		zapo11y.WithServiceName("jobkit"),
		zapo11y.WithLevel(level),
		zapo11y.WithFormat(format),
		zapo11y.WithOutput(os.Stderr),
	)
	if err != nil {
		return nil, err
	}
	return &telemetry{
		Observability: provider,
		gatherer:      provider.Registry(),
		shutdown:      func(context.Context) error { return provider.Sync() },
	}, nil
}

// Close flushes buffered telemetry.
func (t *telemetry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
	defer cancel()

	if err := t.shutdown(ctx); err != nil {
		return fmt.Errorf("failed to flush telemetry: %w", err)
	}
	return nil
}
