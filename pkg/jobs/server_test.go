package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/memstore"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func testOptions(cfg *jobs.GlobalConfiguration) *jobs.ServerOptions {
	o := jobs.DefaultServerOptions()
	o.ServerName = "test"
	o.WorkerCount = 2
	o.PollInterval = 10 * time.Millisecond
	o.SchedulePollInterval = 10 * time.Millisecond
	o.HeartbeatInterval = 50 * time.Millisecond
	o.ServerCheckInterval = 50 * time.Millisecond
	o.ServerTimeout = time.Second
	o.ShutdownTimeout = time.Second
	o.RetryBaseDelay = 10 * time.Millisecond
	o.RetryMaxDelay = 50 * time.Millisecond
	o.EnableRecurring = false
	o.Configuration = cfg
	o.Observability = fake.NewProvider()
	return o
}

func startServer(t *testing.T, opts *jobs.ServerOptions, store jobs.Storage, processes ...jobs.BackgroundProcess) *jobs.BackgroundJobServer {
	t.Helper()
	server, err := jobs.NewBackgroundJobServer(opts, store, processes)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server
}

func waitForState(t *testing.T, store jobs.Storage, id string, state jobs.State) *jobs.Job {
	t.Helper()
	var job *jobs.Job
	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = got
		return got.State == state
	}, waitFor, tick)
	return job
}

func TestNewBackgroundJobServer_Validation(t *testing.T) {
	opts := testOptions(jobs.NewConfiguration())
	opts.WorkerCount = 0

	_, err := jobs.NewBackgroundJobServer(opts, memstore.New(), nil)
	var serverErr *jobs.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "new", serverErr.Op)

	_, err = jobs.NewBackgroundJobServer(testOptions(jobs.NewConfiguration()), nil, nil)
	assert.ErrorIs(t, err, jobs.ErrStorageNotConfigured)
}

func TestServer_ProcessesJobs(t *testing.T) {
	cfg := jobs.NewConfiguration()
	var received atomic.Value
	cfg.Handle("greet", func(ctx context.Context, job *jobs.Job) error {
		var args struct{ Name string }
		if err := job.Bind(&args); err != nil {
			return err
		}
		received.Store(args.Name)
		return nil
	})

	store := memstore.New()
	opts := testOptions(cfg)
	var started, completed atomic.Int32
	opts.OnJobStart = func(job *jobs.Job) { started.Add(1) }
	opts.OnJobComplete = func(job *jobs.Job, d time.Duration, err error) {
		if err == nil {
			completed.Add(1)
		}
	}
	provider := opts.Observability.(*fake.Provider)

	startServer(t, opts, store)

	job, err := jobs.NewClient(store, nil).Enqueue(context.Background(), "greet", map[string]string{"Name": "jobkit"})
	require.NoError(t, err)

	done := waitForState(t, store, job.ID, jobs.StateSucceeded)
	assert.Equal(t, 1, done.Attempts)
	assert.Equal(t, "jobkit", received.Load())
	assert.Equal(t, int32(1), started.Load())
	require.Eventually(t, func() bool { return completed.Load() == 1 }, waitFor, tick)

	require.Eventually(t, func() bool {
		m := provider.FakeMetrics().Get("jobs_processed_total")
		return m != nil && m.Value() == 1
	}, waitFor, tick)
}

func TestServer_TracesJobExecution(t *testing.T) {
	cfg := jobs.NewConfiguration()
	opts := testOptions(cfg)
	provider := opts.Observability.(*fake.Provider)

	var handlerSpan atomic.Value
	cfg.Handle("mail", func(ctx context.Context, job *jobs.Job) error {
		handlerSpan.Store(provider.Tracer().SpanFromContext(ctx))
		return jobs.Permanent(errors.New("mailbox full"))
	})
	cfg.Handle("ok", func(ctx context.Context, job *jobs.Job) error { return nil })

	store := memstore.New()
	server := startServer(t, opts, store)
	client := jobs.NewClient(store, nil)

	failed, err := client.Enqueue(context.Background(), "mail", nil, jobs.OnQueue("default"))
	require.NoError(t, err)
	succeeded, err := client.Enqueue(context.Background(), "ok", nil)
	require.NoError(t, err)
	waitForState(t, store, failed.ID, jobs.StateFailed)
	waitForState(t, store, succeeded.ID, jobs.StateSucceeded)

	tracer := provider.FakeTracer()
	require.Eventually(t, func() bool {
		mail, ok := tracer.SpansNamed("job mail"), tracer.SpansNamed("job ok")
		return len(mail) == 1 && mail[0].Ended() && len(ok) == 1 && ok[0].Ended()
	}, waitFor, tick)

	span := tracer.SpansNamed("job mail")[0]
	assert.Equal(t, observability.SpanKindConsumer, span.Kind)
	assert.Same(t, span, handlerSpan.Load())

	id, _ := span.Attribute("job.id")
	assert.Equal(t, failed.ID, id)
	queue, _ := span.Attribute("job.queue")
	assert.Equal(t, "default", queue)
	serverID, _ := span.Attribute("server.id")
	assert.Equal(t, server.ID(), serverID)
	outcome, _ := span.Attribute("job.outcome")
	assert.Equal(t, "failed", outcome)

	code, description := span.Status()
	assert.Equal(t, observability.StatusCodeError, code)
	assert.Contains(t, description, "mailbox full")
	require.Len(t, span.Errors(), 1)

	code, _ = tracer.SpansNamed("job ok")[0].Status()
	assert.Equal(t, observability.StatusCodeOK, code)
}

func TestServer_AnnouncesAndRemovesServer(t *testing.T) {
	store := memstore.New()
	server, err := jobs.NewBackgroundJobServer(testOptions(jobs.NewConfiguration()), store, nil)
	require.NoError(t, err)

	servers, err := store.Servers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, server.ID(), servers[0].ID)
	assert.Equal(t, "test", servers[0].Name)
	assert.Equal(t, 2, servers[0].WorkerCount)

	require.NoError(t, server.Close())
	require.NoError(t, server.Close())

	servers, err = store.Servers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestServer_RetriesThenSucceeds(t *testing.T) {
	cfg := jobs.NewConfiguration()
	var calls atomic.Int32
	cfg.Handle("flaky", func(ctx context.Context, job *jobs.Job) error {
		if calls.Add(1) < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	store := memstore.New()
	startServer(t, testOptions(cfg), store)

	job, err := jobs.NewClient(store, nil).Enqueue(context.Background(), "flaky", nil)
	require.NoError(t, err)

	done := waitForState(t, store, job.ID, jobs.StateSucceeded)
	assert.Equal(t, 3, done.Attempts)
	assert.Equal(t, "temporary", done.LastError)
}

func TestServer_FailsAfterMaxRetries(t *testing.T) {
	cfg := jobs.NewConfiguration()
	var calls atomic.Int32
	cfg.Handle("broken", func(ctx context.Context, job *jobs.Job) error {
		calls.Add(1)
		return errors.New("always")
	})

	store := memstore.New()
	startServer(t, testOptions(cfg), store)

	job, err := jobs.NewClient(store, nil).Enqueue(context.Background(), "broken", nil, jobs.WithMaxRetries(1))
	require.NoError(t, err)

	failed := waitForState(t, store, job.ID, jobs.StateFailed)
	assert.Equal(t, 2, failed.Attempts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestServer_PermanentErrorsAreNotRetried(t *testing.T) {
	cfg := jobs.NewConfiguration()
	cfg.Handle("invalid", func(ctx context.Context, job *jobs.Job) error {
		return jobs.Permanent(errors.New("bad input"))
	})

	store := memstore.New()
	startServer(t, testOptions(cfg), store)

	client := jobs.NewClient(store, nil)
	permanent, err := client.Enqueue(context.Background(), "invalid", nil)
	require.NoError(t, err)
	unknown, err := client.Enqueue(context.Background(), "unregistered", nil)
	require.NoError(t, err)

	failed := waitForState(t, store, permanent.ID, jobs.StateFailed)
	assert.Equal(t, 1, failed.Attempts)

	failed = waitForState(t, store, unknown.ID, jobs.StateFailed)
	assert.Equal(t, 1, failed.Attempts)
	assert.Contains(t, failed.LastError, "no handler registered")
}

func TestServer_RecoversPanics(t *testing.T) {
	cfg := jobs.NewConfiguration()
	cfg.Handle("panics", func(ctx context.Context, job *jobs.Job) error {
		panic("kaboom")
	})

	store := memstore.New()
	startServer(t, testOptions(cfg), store)

	job, err := jobs.NewClient(store, nil).Enqueue(context.Background(), "panics", nil, jobs.WithMaxRetries(0))
	require.NoError(t, err)

	failed := waitForState(t, store, job.ID, jobs.StateFailed)
	assert.Contains(t, failed.LastError, "job panicked: kaboom")
}

func TestServer_JobTimeout(t *testing.T) {
	cfg := jobs.NewConfiguration()
	cfg.Handle("slow", func(ctx context.Context, job *jobs.Job) error {
		<-ctx.Done()
		return ctx.Err()
	})

	store := memstore.New()
	opts := testOptions(cfg)
	opts.JobTimeout = 20 * time.Millisecond
	startServer(t, opts, store)

	job, err := jobs.NewClient(store, nil).Enqueue(context.Background(), "slow", nil, jobs.WithMaxRetries(0))
	require.NoError(t, err)

	failed := waitForState(t, store, job.ID, jobs.StateFailed)
	assert.Contains(t, failed.LastError, context.DeadlineExceeded.Error())
}

func TestServer_ShutdownAbortsAndRequeues(t *testing.T) {
	cfg := jobs.NewConfiguration()
	started := make(chan struct{})
	cfg.Handle("blocking", func(ctx context.Context, job *jobs.Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	store := memstore.New()
	opts := testOptions(cfg)
	opts.WorkerCount = 1
	opts.ShutdownTimeout = 50 * time.Millisecond

	server, err := jobs.NewBackgroundJobServer(opts, store, nil)
	require.NoError(t, err)

	job, err := jobs.NewClient(store, nil).Enqueue(context.Background(), "blocking", nil)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("job did not start")
	}

	err = server.Close()
	var shutdownErr *jobs.ShutdownError
	require.ErrorAs(t, err, &shutdownErr)
	assert.Equal(t, 1, shutdownErr.ActiveJobs)
	assert.Equal(t, err, server.Close())

	requeued := waitForState(t, store, job.ID, jobs.StateEnqueued)
	assert.Equal(t, 1, requeued.Attempts)
}

func TestServer_PromotesScheduledJobs(t *testing.T) {
	cfg := jobs.NewConfiguration()
	cfg.Handle("later", func(ctx context.Context, job *jobs.Job) error { return nil })

	store := memstore.New()
	startServer(t, testOptions(cfg), store)

	job, err := jobs.NewClient(store, nil).Enqueue(context.Background(), "later", nil, jobs.ScheduleIn(50*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, jobs.StateScheduled, job.State)

	waitForState(t, store, job.ID, jobs.StateSucceeded)
}

func TestServer_RestartsFailedProcesses(t *testing.T) {
	var runs atomic.Int32
	flaky := jobs.NewProcess("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("not yet")
		}
		<-ctx.Done()
		return nil
	})

	opts := testOptions(jobs.NewConfiguration())
	provider := opts.Observability.(*fake.Provider)
	startServer(t, opts, memstore.New(), flaky)

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, waitFor, tick)
	assert.True(t, provider.FakeLogger().HasMessage("background process failed, restarting"))
	assert.Equal(t, float64(2), provider.FakeMetrics().Get("background_process_restarts_total").Value())
}

func TestServer_RequeuesJobsOfDeadServers(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, store.AnnounceServer(ctx, jobs.ServerInfo{ID: "dead", Name: "gone", Queues: []string{"other"}, WorkerCount: 1, StartedAt: stale, HeartbeatAt: stale}))

	job, err := jobs.NewClient(store, nil).Enqueue(ctx, "orphan", nil, jobs.OnQueue("other"))
	require.NoError(t, err)
	_, err = store.Fetch(ctx, []string{"other"}, "dead")
	require.NoError(t, err)

	startServer(t, testOptions(jobs.NewConfiguration()), store)

	waitForState(t, store, job.ID, jobs.StateEnqueued)
	require.Eventually(t, func() bool {
		servers, err := store.Servers(ctx)
		return err == nil && len(servers) == 1 && servers[0].ID != "dead"
	}, waitFor, tick)
}

func TestServer_HeartbeatReannounces(t *testing.T) {
	store := memstore.New()
	server := startServer(t, testOptions(jobs.NewConfiguration()), store)

	require.NoError(t, store.RemoveServer(context.Background(), server.ID()))

	require.Eventually(t, func() bool {
		servers, err := store.Servers(context.Background())
		return err == nil && len(servers) == 1 && servers[0].ID == server.ID()
	}, waitFor, tick)
}

func TestServer_EnqueuesRecurringJobs(t *testing.T) {
	cfg := jobs.NewConfiguration()
	var calls atomic.Int32
	cfg.Handle("tick", func(ctx context.Context, job *jobs.Job) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, cfg.AddOrUpdateRecurring("every-second", "* * * * * *", "tick", nil))

	opts := testOptions(cfg)
	opts.EnableRecurring = true
	startServer(t, opts, memstore.New())

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, waitFor, tick)
}
