// Package memstore provides an in-memory jobs.Storage for tests and
// single-process deployments. Data does not survive a restart.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
)

// Option configures the storage.
type Option func(*Storage)

// WithClock overrides the time source used for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

type record struct {
	job *jobs.Job
	// seq orders jobs inside a queue; it is bumped every time the job
	// re-enters the enqueued state.
	seq uint64
}

// Storage is a mutex-guarded in-memory jobs.Storage.
type Storage struct {
	mu      sync.Mutex
	jobs    map[string]*record
	servers map[string]jobs.ServerInfo
	seq     uint64
	now     func() time.Time
}

var _ jobs.Storage = (*Storage)(nil)

// New creates an empty storage.
func New(opts ...Option) *Storage {
	s := &Storage{
		jobs:    make(map[string]*record),
		servers: make(map[string]jobs.ServerInfo),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Storage) Create(ctx context.Context, job *jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = &record{job: job.Clone(), seq: s.nextSeq()}
	return nil
}

func (s *Storage) Fetch(ctx context.Context, queues []string, serverID string) (*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var picked *record
	pickedRank := len(queues)
	for _, r := range s.jobs {
		if r.job.State != jobs.StateEnqueued {
			continue
		}
		rank := slices.Index(queues, r.job.Queue)
		if rank < 0 {
			continue
		}
		if picked == nil || rank < pickedRank || (rank == pickedRank && r.seq < picked.seq) {
			picked, pickedRank = r, rank
		}
	}

	if picked == nil {
		return nil, jobs.ErrNoJob
	}

	picked.job.State = jobs.StateProcessing
	picked.job.ServerID = serverID
	picked.job.Attempts++
	picked.job.UpdatedAt = s.now().UTC()
	return picked.job.Clone(), nil
}

func (s *Storage) Complete(ctx context.Context, id string) error {
	return s.transition(ctx, id, func(r *record) error {
		if r.job.State != jobs.StateProcessing {
			return jobs.ErrInvalidTransition
		}
		r.job.State = jobs.StateSucceeded
		r.job.ServerID = ""
		return nil
	})
}

func (s *Storage) Fail(ctx context.Context, id string, reason string, retryAt *time.Time) error {
	return s.transition(ctx, id, func(r *record) error {
		if r.job.State != jobs.StateProcessing {
			return jobs.ErrInvalidTransition
		}
		r.job.LastError = reason
		r.job.ServerID = ""
		if retryAt != nil {
			at := retryAt.UTC()
			r.job.State = jobs.StateScheduled
			r.job.ScheduledAt = &at
			return nil
		}
		r.job.State = jobs.StateFailed
		return nil
	})
}

func (s *Storage) Requeue(ctx context.Context, id string) error {
	return s.transition(ctx, id, func(r *record) error {
		r.job.State = jobs.StateEnqueued
		r.job.ServerID = ""
		r.job.ScheduledAt = nil
		r.seq = s.nextSeq()
		return nil
	})
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.transition(ctx, id, func(r *record) error {
		r.job.State = jobs.StateDeleted
		r.job.ServerID = ""
		return nil
	})
}

func (s *Storage) transition(ctx context.Context, id string, fn func(r *record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.jobs[id]
	if !ok {
		return jobs.ErrJobNotFound
	}
	if err := fn(r); err != nil {
		return err
	}
	r.job.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Storage) Get(ctx context.Context, id string) (*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.jobs[id]
	if !ok {
		return nil, jobs.ErrJobNotFound
	}
	return r.job.Clone(), nil
}

func (s *Storage) List(ctx context.Context, state jobs.State, offset, limit int) ([]*jobs.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*jobs.Job, 0)
	for _, r := range s.jobs {
		if state == "" || r.job.State == state {
			list = append(list, r.job)
		}
	}
	slices.SortFunc(list, func(a, b *jobs.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	offset = max(offset, 0)
	if offset >= len(list) {
		return []*jobs.Job{}, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}

	out := make([]*jobs.Job, len(list))
	for i, j := range list {
		out[i] = j.Clone()
	}
	return out, nil
}

func (s *Storage) Stats(ctx context.Context) (jobs.Stats, error) {
	if err := ctx.Err(); err != nil {
		return jobs.Stats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stats jobs.Stats
	for _, r := range s.jobs {
		stats.Add(r.job.State, 1)
	}
	stats.Servers = int64(len(s.servers))
	return stats, nil
}

func (s *Storage) EnqueueDue(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*record, 0)
	for _, r := range s.jobs {
		if r.job.State == jobs.StateScheduled && r.job.ScheduledAt != nil && !r.job.ScheduledAt.After(now) {
			due = append(due, r)
		}
	}
	slices.SortFunc(due, func(a, b *record) int {
		return a.job.ScheduledAt.Compare(*b.job.ScheduledAt)
	})

	for _, r := range due {
		r.job.State = jobs.StateEnqueued
		r.job.ScheduledAt = nil
		r.job.UpdatedAt = now.UTC()
		r.seq = s.nextSeq()
	}
	return len(due), nil
}

func (s *Storage) AnnounceServer(ctx context.Context, server jobs.ServerInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	server.Queues = append([]string(nil), server.Queues...)
	s.servers[server.ID] = server
	return nil
}

func (s *Storage) Heartbeat(ctx context.Context, serverID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	server, ok := s.servers[serverID]
	if !ok {
		return jobs.ErrServerNotFound
	}
	server.HeartbeatAt = at.UTC()
	s.servers[serverID] = server
	return nil
}

func (s *Storage) RemoveServer(ctx context.Context, serverID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.servers, serverID)
	return nil
}

func (s *Storage) Servers(ctx context.Context) ([]jobs.ServerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]jobs.ServerInfo, 0, len(s.servers))
	for _, server := range s.servers {
		server.Queues = append([]string(nil), server.Queues...)
		list = append(list, server)
	}
	slices.SortFunc(list, func(a, b jobs.ServerInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return list, nil
}

func (s *Storage) RemoveTimedOutServers(ctx context.Context, timeout time.Duration, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-timeout)
	removed := 0
	for id, server := range s.servers {
		if !server.HeartbeatAt.Before(cutoff) {
			continue
		}
		delete(s.servers, id)
		removed++

		for _, r := range s.jobs {
			if r.job.State == jobs.StateProcessing && r.job.ServerID == id {
				r.job.State = jobs.StateEnqueued
				r.job.ServerID = ""
				r.job.UpdatedAt = now.UTC()
				r.seq = s.nextSeq()
			}
		}
	}
	return removed, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}
