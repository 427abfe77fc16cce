package jobs_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/memstore"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Enqueue(t *testing.T) {
	store := memstore.New()
	provider := fake.NewProvider()
	client := jobs.NewClient(store, provider)
	ctx := context.Background()

	job, err := client.Enqueue(ctx, "email.send", map[string]string{"to": "a@b.c"})
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, jobs.StateEnqueued, job.State)
	assert.Equal(t, jobs.DefaultQueue, job.Queue)
	assert.Equal(t, jobs.DefaultMaxRetries, job.MaxRetries)
	assert.Nil(t, job.ScheduledAt)

	stored, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"to":"a@b.c"}`, string(stored.Args))
	assert.True(t, provider.FakeLogger().HasMessage("job enqueued"))
}

func TestClient_EnqueueOptions(t *testing.T) {
	store := memstore.New()
	client := jobs.NewClient(store, nil)
	ctx := context.Background()

	job, err := client.Enqueue(ctx, "report", nil, jobs.OnQueue("critical"), jobs.WithMaxRetries(2))
	require.NoError(t, err)
	assert.Equal(t, "critical", job.Queue)
	assert.Equal(t, 2, job.MaxRetries)
	assert.Nil(t, job.Args)

	job, err = client.Enqueue(ctx, "report", nil, jobs.OnQueue(""), jobs.WithMaxRetries(-1))
	require.NoError(t, err)
	assert.Equal(t, jobs.DefaultQueue, job.Queue)
	assert.Equal(t, jobs.DefaultMaxRetries, job.MaxRetries)
}

func TestClient_Schedule(t *testing.T) {
	store := memstore.New()
	client := jobs.NewClient(store, nil)
	ctx := context.Background()

	before := time.Now()
	job, err := client.Enqueue(ctx, "later", nil, jobs.ScheduleIn(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, jobs.StateScheduled, job.State)
	require.NotNil(t, job.ScheduledAt)
	assert.True(t, job.ScheduledAt.After(before.Add(59*time.Minute)))

	at := time.Now().Add(2 * time.Hour)
	job, err = client.Enqueue(ctx, "later", nil, jobs.ScheduleAt(at))
	require.NoError(t, err)
	assert.Equal(t, jobs.StateScheduled, job.State)
	assert.True(t, at.Equal(*job.ScheduledAt))

	job, err = client.Enqueue(ctx, "past", nil, jobs.ScheduleAt(time.Now().Add(-time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, jobs.StateEnqueued, job.State)
	assert.Nil(t, job.ScheduledAt)
}

func TestClient_EnqueueErrors(t *testing.T) {
	ctx := context.Background()

	_, err := jobs.NewClient(nil, nil).Enqueue(ctx, "a", nil)
	assert.ErrorIs(t, err, jobs.ErrStorageNotConfigured)

	client := jobs.NewClient(memstore.New(), nil)
	_, err = client.Enqueue(ctx, "", nil)
	assert.Error(t, err)

	var jobErr *jobs.JobError
	_, err = client.Enqueue(ctx, "a", make(chan int))
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "enqueue", jobErr.Op)

	_, err = client.Enqueue(ctx, "a", json.RawMessage(`{broken`))
	assert.Error(t, err)
}

func TestClient_Trigger(t *testing.T) {
	cfg := jobs.NewConfiguration()
	require.NoError(t, cfg.AddOrUpdateRecurring("nightly", "0 0 * * *", "report", map[string]int{"n": 1}, jobs.OnQueue("reports"), jobs.WithMaxRetries(1)))
	require.NoError(t, cfg.AddOrUpdateRecurring("bare", "0 0 * * *", "ping", nil))

	client := jobs.NewClient(memstore.New(), nil)

	nightly, _ := cfg.Recurring("nightly")
	job, err := client.Trigger(context.Background(), nightly)
	require.NoError(t, err)
	assert.Equal(t, "report", job.Type)
	assert.Equal(t, "reports", job.Queue)
	assert.Equal(t, 1, job.MaxRetries)
	assert.JSONEq(t, `{"n":1}`, string(job.Args))

	bare, _ := cfg.Recurring("bare")
	job, err = client.Trigger(context.Background(), bare)
	require.NoError(t, err)
	assert.Nil(t, job.Args)
}

func TestEnqueue_UsesGlobalStorage(t *testing.T) {
	store := memstore.New()
	jobs.Configuration().UseStorage(store)
	t.Cleanup(func() { jobs.Configuration().UseStorage(nil) })

	job, err := jobs.Enqueue(context.Background(), "global", nil)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), job.ID)
	assert.NoError(t, err)
}
