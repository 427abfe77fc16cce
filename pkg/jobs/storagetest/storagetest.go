// Package storagetest holds a conformance suite that every jobs.Storage
// implementation runs from its own tests.
package storagetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty storage for one subtest.
type Factory func(t *testing.T) jobs.Storage

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// NewJob builds an enqueued job created offset after a fixed base time.
func NewJob(jobType, queue string, offset time.Duration) *jobs.Job {
	created := base.Add(offset)
	return &jobs.Job{
		ID:         ulid.Make().String(),
		Type:       jobType,
		Queue:      queue,
		Args:       json.RawMessage(`{"n":1}`),
		State:      jobs.StateEnqueued,
		MaxRetries: 3,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

// Run executes the suite.
func Run(t *testing.T, newStorage Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s jobs.Storage)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"GetMissing", testGetMissing},
		{"FetchOrder", testFetchOrder},
		{"FetchEmpty", testFetchEmpty},
		{"FetchConcurrentOnce", testFetchConcurrentOnce},
		{"Complete", testComplete},
		{"FailWithRetry", testFailWithRetry},
		{"FailPermanently", testFailPermanently},
		{"InvalidTransition", testInvalidTransition},
		{"RequeueAndDelete", testRequeueAndDelete},
		{"ListAndStats", testListAndStats},
		{"EnqueueDue", testEnqueueDue},
		{"Servers", testServers},
		{"RemoveTimedOutServers", testRemoveTimedOutServers},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStorage(t))
		})
	}
}

func create(t *testing.T, s jobs.Storage, job *jobs.Job) *jobs.Job {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), job))
	return job
}

func testCreateAndGet(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	job := NewJob("email.send", "default", 0)
	at := base.Add(time.Hour)
	job.State = jobs.StateScheduled
	job.ScheduledAt = &at
	create(t, s, job)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "email.send", got.Type)
	assert.Equal(t, "default", got.Queue)
	assert.JSONEq(t, `{"n":1}`, string(got.Args))
	assert.Equal(t, jobs.StateScheduled, got.State)
	assert.Equal(t, 3, got.MaxRetries)
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, at.Equal(*got.ScheduledAt))
}

func testGetMissing(t *testing.T, s jobs.Storage) {
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	assert.ErrorIs(t, s.Requeue(context.Background(), "missing"), jobs.ErrJobNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "missing"), jobs.ErrJobNotFound)
}

func testFetchOrder(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	low1 := create(t, s, NewJob("a", "low", 0))
	low2 := create(t, s, NewJob("a", "low", time.Second))
	critical := create(t, s, NewJob("a", "critical", 2*time.Second))
	create(t, s, NewJob("a", "ignored", 0))

	queues := []string{"critical", "low"}
	expected := []string{critical.ID, low1.ID, low2.ID}
	for _, id := range expected {
		job, err := s.Fetch(ctx, queues, "server-1")
		require.NoError(t, err)
		assert.Equal(t, id, job.ID)
		assert.Equal(t, jobs.StateProcessing, job.State)
		assert.Equal(t, "server-1", job.ServerID)
		assert.Equal(t, 1, job.Attempts)
	}

	_, err := s.Fetch(ctx, queues, "server-1")
	assert.ErrorIs(t, err, jobs.ErrNoJob)
}

func testFetchEmpty(t *testing.T, s jobs.Storage) {
	_, err := s.Fetch(context.Background(), []string{"default"}, "server-1")
	assert.ErrorIs(t, err, jobs.ErrNoJob)
}

func testFetchConcurrentOnce(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	const total = 20
	for i := range total {
		create(t, s, NewJob("a", "default", time.Duration(i)*time.Millisecond))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := s.Fetch(ctx, []string{"default"}, fmt.Sprintf("server-%d", w))
				if err != nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s fetched more than once", id)
	}
}

func fetchOne(t *testing.T, s jobs.Storage) *jobs.Job {
	t.Helper()
	job, err := s.Fetch(context.Background(), []string{"default"}, "server-1")
	require.NoError(t, err)
	return job
}

func testComplete(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	create(t, s, NewJob("a", "default", 0))
	job := fetchOne(t, s)

	require.NoError(t, s.Complete(ctx, job.ID))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateSucceeded, got.State)
	assert.Empty(t, got.ServerID)
}

func testFailWithRetry(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	create(t, s, NewJob("a", "default", 0))
	job := fetchOne(t, s)

	retryAt := base.Add(time.Minute)
	require.NoError(t, s.Fail(ctx, job.ID, "boom", &retryAt))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateScheduled, got.State)
	assert.Equal(t, "boom", got.LastError)
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, retryAt.Equal(*got.ScheduledAt))

	n, err := s.EnqueueDue(ctx, retryAt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again := fetchOne(t, s)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, 2, again.Attempts)
}

func testFailPermanently(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	create(t, s, NewJob("a", "default", 0))
	job := fetchOne(t, s)

	require.NoError(t, s.Fail(ctx, job.ID, "fatal", nil))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateFailed, got.State)
	assert.Equal(t, "fatal", got.LastError)
}

func testInvalidTransition(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	job := create(t, s, NewJob("a", "default", 0))

	assert.ErrorIs(t, s.Complete(ctx, job.ID), jobs.ErrInvalidTransition)
	assert.ErrorIs(t, s.Fail(ctx, job.ID, "x", nil), jobs.ErrInvalidTransition)
	assert.ErrorIs(t, s.Complete(ctx, "missing"), jobs.ErrJobNotFound)
}

func testRequeueAndDelete(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	create(t, s, NewJob("a", "default", 0))
	job := fetchOne(t, s)
	require.NoError(t, s.Fail(ctx, job.ID, "fatal", nil))

	require.NoError(t, s.Requeue(ctx, job.ID))
	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateEnqueued, got.State)
	assert.Nil(t, got.ScheduledAt)

	require.NoError(t, s.Delete(ctx, job.ID))
	got, err = s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateDeleted, got.State)

	_, err = s.Fetch(ctx, []string{"default"}, "server-1")
	assert.ErrorIs(t, err, jobs.ErrNoJob)
}

func testListAndStats(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	oldest := create(t, s, NewJob("a", "default", 0))
	middle := create(t, s, NewJob("a", "default", time.Second))
	newest := create(t, s, NewJob("a", "default", 2*time.Second))
	require.NoError(t, s.Delete(ctx, middle.ID))

	all, err := s.List(ctx, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, newest.ID, all[0].ID)
	assert.Equal(t, oldest.ID, all[2].ID)

	enqueued, err := s.List(ctx, jobs.StateEnqueued, 0, 10)
	require.NoError(t, err)
	require.Len(t, enqueued, 2)

	page, err := s.List(ctx, jobs.StateEnqueued, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, oldest.ID, page[0].ID)

	empty, err := s.List(ctx, jobs.StateEnqueued, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.AnnounceServer(ctx, jobs.ServerInfo{ID: "server-1", Name: "host", Queues: []string{"default"}, WorkerCount: 1, StartedAt: base, HeartbeatAt: base}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Enqueued)
	assert.Equal(t, int64(1), stats.Deleted)
	assert.Equal(t, int64(0), stats.Processing)
	assert.Equal(t, int64(1), stats.Servers)
}

func testEnqueueDue(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	schedule := func(offset time.Duration) *jobs.Job {
		job := NewJob("a", "default", 0)
		at := base.Add(offset)
		job.State = jobs.StateScheduled
		job.ScheduledAt = &at
		return create(t, s, job)
	}
	due := schedule(time.Minute)
	later := schedule(time.Hour)

	n, err := s.EnqueueDue(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateEnqueued, got.State)

	got, err = s.Get(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateScheduled, got.State)

	n, err = s.EnqueueDue(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testServers(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	server := jobs.ServerInfo{ID: "b-server", Name: "host-b", Queues: []string{"critical", "default"}, WorkerCount: 4, StartedAt: base, HeartbeatAt: base}
	require.NoError(t, s.AnnounceServer(ctx, server))
	require.NoError(t, s.AnnounceServer(ctx, jobs.ServerInfo{ID: "a-server", Name: "host-a", Queues: []string{"default"}, WorkerCount: 1, StartedAt: base, HeartbeatAt: base}))

	beat := base.Add(time.Minute)
	require.NoError(t, s.Heartbeat(ctx, "b-server", beat))
	assert.ErrorIs(t, s.Heartbeat(ctx, "unknown", beat), jobs.ErrServerNotFound)

	servers, err := s.Servers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "a-server", servers[0].ID)
	assert.Equal(t, "b-server", servers[1].ID)
	assert.Equal(t, []string{"critical", "default"}, servers[1].Queues)
	assert.Equal(t, 4, servers[1].WorkerCount)
	assert.True(t, beat.Equal(servers[1].HeartbeatAt))

	require.NoError(t, s.RemoveServer(ctx, "a-server"))
	require.NoError(t, s.RemoveServer(ctx, "a-server"))
	servers, err = s.Servers(ctx)
	require.NoError(t, err)
	assert.Len(t, servers, 1)
}

func testRemoveTimedOutServers(t *testing.T, s jobs.Storage) {
	ctx := context.Background()
	require.NoError(t, s.AnnounceServer(ctx, jobs.ServerInfo{ID: "dead", Name: "h", Queues: []string{"default"}, WorkerCount: 1, StartedAt: base, HeartbeatAt: base}))
	require.NoError(t, s.AnnounceServer(ctx, jobs.ServerInfo{ID: "alive", Name: "h", Queues: []string{"default"}, WorkerCount: 1, StartedAt: base, HeartbeatAt: base.Add(10 * time.Minute)}))

	orphan := create(t, s, NewJob("a", "default", 0))
	owned := create(t, s, NewJob("a", "default", time.Second))

	job, err := s.Fetch(ctx, []string{"default"}, "dead")
	require.NoError(t, err)
	require.Equal(t, orphan.ID, job.ID)
	job, err = s.Fetch(ctx, []string{"default"}, "alive")
	require.NoError(t, err)
	require.Equal(t, owned.ID, job.ID)

	n, err := s.RemoveTimedOutServers(ctx, 5*time.Minute, base.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateEnqueued, got.State)
	assert.Empty(t, got.ServerID)

	got, err = s.Get(ctx, owned.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateProcessing, got.State)

	servers, err := s.Servers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "alive", servers[0].ID)
}

func testPing(t *testing.T, s jobs.Storage) {
	assert.NoError(t, s.Ping(context.Background()))
}
