package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/memstore"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfiguration_IsProcessWide(t *testing.T) {
	assert.Same(t, jobs.Configuration(), jobs.Configuration())
	assert.NotSame(t, jobs.Configuration(), jobs.NewConfiguration())
}

func TestConfiguration_Storage(t *testing.T) {
	cfg := jobs.NewConfiguration()

	_, err := cfg.Storage()
	assert.ErrorIs(t, err, jobs.ErrStorageNotConfigured)

	store := memstore.New()
	got, err := cfg.UseStorage(store).Storage()
	require.NoError(t, err)
	assert.Same(t, store, got)
}

func TestConfiguration_Observability(t *testing.T) {
	cfg := jobs.NewConfiguration()
	assert.NotNil(t, cfg.Observability())

	provider := fake.NewProvider()
	cfg.UseObservability(provider)
	assert.Same(t, provider, cfg.Observability())
}

func TestConfiguration_Handle(t *testing.T) {
	cfg := jobs.NewConfiguration()
	noop := func(ctx context.Context, job *jobs.Job) error { return nil }

	cfg.Handle("b", noop).Handle("a", noop)

	_, ok := cfg.Handler("a")
	assert.True(t, ok)
	_, ok = cfg.Handler("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, cfg.HandlerTypes())

	assert.Panics(t, func() { cfg.Handle(" ", noop) })
	assert.Panics(t, func() { cfg.Handle("c", nil) })
}

func TestConfiguration_Recurring(t *testing.T) {
	cfg := jobs.NewConfiguration()

	require.NoError(t, cfg.AddOrUpdateRecurring("report", "0 * * * *", "report.build", map[string]int{"days": 1}, jobs.OnQueue("reports")))
	require.NoError(t, cfg.AddOrUpdateRecurring("cleanup", "@every 10m", "cleanup", nil, jobs.WithMaxRetries(0)))
	require.NoError(t, cfg.AddOrUpdateRecurring("fast", "*/5 * * * * *", "tick", nil))

	list := cfg.RecurringJobs()
	require.Len(t, list, 3)
	assert.Equal(t, "cleanup", list[0].ID)
	assert.Equal(t, "fast", list[1].ID)
	assert.Equal(t, "report", list[2].ID)

	report, ok := cfg.Recurring("report")
	require.True(t, ok)
	assert.Equal(t, "reports", report.Queue)
	assert.JSONEq(t, `{"days":1}`, string(report.Args))
	assert.Equal(t, jobs.DefaultMaxRetries, report.MaxRetries)

	from := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC), report.Next(from))

	cleanup, _ := cfg.Recurring("cleanup")
	assert.Zero(t, cleanup.MaxRetries)

	require.NoError(t, cfg.AddOrUpdateRecurring("report", "0 0 * * *", "report.build", nil))
	report, _ = cfg.Recurring("report")
	assert.Equal(t, "0 0 * * *", report.Spec)
	assert.Equal(t, jobs.DefaultQueue, report.Queue)

	cfg.RemoveRecurring("report")
	cfg.RemoveRecurring("unknown")
	assert.Len(t, cfg.RecurringJobs(), 2)
}

func TestConfiguration_RecurringValidation(t *testing.T) {
	cfg := jobs.NewConfiguration()

	assert.Error(t, cfg.AddOrUpdateRecurring("", "* * * * *", "t", nil))
	assert.Error(t, cfg.AddOrUpdateRecurring("id", "* * * * *", "", nil))
	assert.Error(t, cfg.AddOrUpdateRecurring("id", "not a cron", "t", nil))
	assert.Error(t, cfg.AddOrUpdateRecurring("id", "* * * * *", "t", make(chan int)))
	assert.Empty(t, cfg.RecurringJobs())
}
