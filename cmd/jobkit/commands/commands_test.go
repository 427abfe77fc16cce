package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "chi", cfg.HTTP.Engine)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "/hangfire", cfg.Dashboard.Path)
	assert.True(t, cfg.Dashboard.Enabled)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, []string{"default"}, cfg.Server.Queues)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("JOBKIT_STORAGE_DRIVER", "sqlite3")
	t.Setenv("JOBKIT_STORAGE_DSN", "file:jobs.db")
	t.Setenv("JOBKIT_HTTP_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("JOBKIT_DASHBOARD_READ_ONLY", "true")
	t.Setenv("JOBKIT_SERVER_WORKERS", "3")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, "file:jobs.db", cfg.Storage.DSN)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.True(t, cfg.Dashboard.ReadOnly)
	assert.Equal(t, 3, cfg.Server.Workers)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  engine: fiber
  port: "9090"
dashboard:
  path: /jobs
  token: s3cret
server:
  name: worker-a
  queues: [critical, default]
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "fiber", cfg.HTTP.Engine)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "/jobs", cfg.Dashboard.Path)
	assert.Equal(t, "s3cret", cfg.Dashboard.Token)
	assert.Equal(t, "worker-a", cfg.Server.Name)
	assert.Equal(t, []string{"critical", "default"}, cfg.Server.Queues)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "configuration file not found")

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"JOBKIT_STORAGE_DRIVER": "mongo"}, "unsupported storage driver"},
		{"missing dsn", map[string]string{"JOBKIT_STORAGE_DRIVER": "postgres"}, "storage.dsn is required"},
		{"unknown engine", map[string]string{"JOBKIT_HTTP_ENGINE": "gin"}, "unsupported http engine"},
		{"negative workers", map[string]string{"JOBKIT_SERVER_WORKERS": "-1"}, "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		storage, closeStorage, err := openStorage(ctx, StorageConfig{Driver: "memory"}, noop.NewProvider())
		require.NoError(t, err)
		defer func() { _ = closeStorage() }()
		assert.NoError(t, storage.Ping(ctx))
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn := "file:" + filepath.Join(t.TempDir(), "jobs.db")
		storage, closeStorage, err := openStorage(ctx, StorageConfig{Driver: "sqlite3", DSN: dsn, Migrate: true}, noop.NewProvider())
		require.NoError(t, err)
		defer func() { _ = closeStorage() }()

		job, err := jobs.NewClient(storage, nil).Enqueue(ctx, "log", map[string]string{"message": "hi"})
		require.NoError(t, err)

		got, err := storage.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobs.StateEnqueued, got.State)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := openStorage(ctx, StorageConfig{Driver: "oracle", DSN: "x"}, noop.NewProvider())
		assert.Error(t, err)
	})
}

func TestBuiltinHandlers(t *testing.T) {
	config := jobs.NewConfiguration()
	registerBuiltinHandlers(config, noop.NewProvider())
	assert.Equal(t, []string{"http", "log", "sleep"}, config.HandlerTypes())

	logHandler, _ := config.Handler("log")
	assert.NoError(t, logHandler(context.Background(), &jobs.Job{ID: "1", Args: []byte(`{"a":1}`)}))
	assert.True(t, jobs.IsPermanent(logHandler(context.Background(), &jobs.Job{ID: "2", Args: []byte(`{`)})))

	sleep, _ := config.Handler("sleep")
	assert.NoError(t, sleep(context.Background(), &jobs.Job{Args: []byte(`{"duration":"1ms"}`)}))
	assert.True(t, jobs.IsPermanent(sleep(context.Background(), &jobs.Job{Args: []byte(`{"duration":"soon"}`)})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, &jobs.Job{Args: []byte(`{"duration":"1h"}`)}), context.Canceled)
}

func TestDashboardOptions(t *testing.T) {
	local := dashboardOptions(DashboardConfig{}, nil)
	require.Len(t, local.Authorization, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:1"
	assert.True(t, local.Authorization[0].Authorize(req))

	token := dashboardOptions(DashboardConfig{Token: "t", ReadOnly: true}, nil)
	assert.True(t, token.IsReadOnly)
	require.Len(t, token.Authorization, 1)
	assert.False(t, token.Authorization[0].Authorize(req))
	req.Header.Set(DashboardTokenHeader, "t")
	assert.True(t, token.Authorization[0].Authorize(req))

}

func TestServerOptions(t *testing.T) {
	o := serverOptions(ServerConfig{Name: "a", Workers: 4, Queues: []string{"q"}})
	assert.Equal(t, "a", o.ServerName)
	assert.Equal(t, 4, o.WorkerCount)
	assert.Equal(t, []string{"q"}, o.Queues)

	d := serverOptions(ServerConfig{})
	assert.Equal(t, jobs.DefaultServerOptions().WorkerCount, d.WorkerCount)
}

func TestRootCommand(t *testing.T) {
	root := GetRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "enqueue"}, names)
}

func TestMigrateCommand_Memory(t *testing.T) {
	root := GetRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"migrate"})
	t.Cleanup(func() { root.SetArgs(nil) })

	err := Execute(context.Background())
	assert.ErrorContains(t, err, "memory storage has no schema")
}

func TestEnqueueCommand_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "jobs.db")
	t.Setenv("JOBKIT_STORAGE_DRIVER", "sqlite3")
	t.Setenv("JOBKIT_STORAGE_DSN", dsn)
	t.Setenv("JOBKIT_LOG_LEVEL", "error")

	root := GetRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"enqueue", "log", "--args", `{"message":"hi"}`, "--queue", "critical"})
	t.Cleanup(func() { root.SetArgs(nil) })

	require.NoError(t, Execute(context.Background()))
	assert.Contains(t, out.String(), "enqueued")
}

func TestNewObservability(t *testing.T) {
	ctx := context.Background()

	t.Run("prometheus", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)

		o11y, err := newObservability(ctx, cfg)
		require.NoError(t, err)
		defer func() { _ = o11y.Close() }()

		assert.NotNil(t, o11y.gatherer)
		assert.NotNil(t, dashboardOptions(cfg.Dashboard, o11y.gatherer).MetricsGatherer)
	})

	t.Run("otlp", func(t *testing.T) {
		t.Setenv("JOBKIT_TELEMETRY_EXPORTER", "otlp")
		t.Setenv("JOBKIT_TELEMETRY_ENDPOINT", "127.0.0.1:4318")
		t.Setenv("JOBKIT_TELEMETRY_PROTOCOL", "http")
		t.Setenv("JOBKIT_TELEMETRY_INSECURE", "true")

		cfg, err := LoadConfig("")
		require.NoError(t, err)

		o11y, err := newObservability(ctx, cfg)
		require.NoError(t, err)
		assert.Nil(t, o11y.gatherer)
		assert.True(t, o11y.tracing)
		o11y.Logger().Info(ctx, "otlp telemetry enabled")
		// Nothing listens on the endpoint, so flushing may fail.
		_ = o11y.Close()
	})

	t.Run("invalid exporter", func(t *testing.T) {
		t.Setenv("JOBKIT_TELEMETRY_EXPORTER", "statsd")
		_, err := LoadConfig("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported telemetry exporter")
	})
}
