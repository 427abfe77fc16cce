// Package sqlstore implements jobs.Storage on database/sql for PostgreSQL
// and SQLite. Timestamps are stored as unix microseconds.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
)

const jobColumns = "id, type, queue, args, state, attempts, max_retries, last_error, server_id, created_at, updated_at, scheduled_at"

// Option configures the storage.
type Option func(*Storage)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

// Storage is a SQL-backed jobs.Storage. The schema must exist, see Migrate.
type Storage struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ jobs.Storage = (*Storage)(nil)

// New creates a storage over db. The caller owns db.
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Storage, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	if !dialect.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}

	s := &Storage{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying pool.
func (s *Storage) DB() *sql.DB {
	return s.db
}

func (s *Storage) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *Storage) stamp() int64 {
	return s.now().UnixMicro()
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func (s *Storage) Create(ctx context.Context, job *jobs.Job) error {
	var args sql.NullString
	if len(job.Args) > 0 {
		args = sql.NullString{String: string(job.Args), Valid: true}
	}
	var scheduledAt sql.NullInt64
	if job.ScheduledAt != nil {
		scheduledAt = sql.NullInt64{Int64: toMicros(*job.ScheduledAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO jobkit_jobs
		(id, type, queue, args, state, attempts, max_retries, last_error, server_id, created_at, updated_at, scheduled_at, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.Type, job.Queue, args, string(job.State), job.Attempts, job.MaxRetries,
		job.LastError, job.ServerID, toMicros(job.CreatedAt), toMicros(job.UpdatedAt), scheduledAt,
		toMicros(job.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: create job: %w", err)
	}
	return nil
}

func (s *Storage) Fetch(ctx context.Context, queues []string, serverID string) (*jobs.Job, error) {
	if len(queues) == 0 {
		return nil, jobs.ErrNoJob
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(queues)), ", ")
	var rank strings.Builder
	rank.WriteString("CASE queue")
	for i := range queues {
		fmt.Fprintf(&rank, " WHEN ? THEN %d", i)
	}
	rank.WriteString(" END")

	query := `UPDATE jobkit_jobs
		SET state = ?, server_id = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = (
			SELECT id FROM jobkit_jobs
			WHERE state = ? AND queue IN (` + placeholders + `)
			ORDER BY ` + rank.String() + `, enqueued_at, id
			LIMIT 1` + s.dialect.lockClause() + `
		)
		RETURNING ` + jobColumns

	args := make([]any, 0, 4+2*len(queues))
	args = append(args, string(jobs.StateProcessing), serverID, s.stamp(), string(jobs.StateEnqueued))
	for _, q := range queues {
		args = append(args, q)
	}
	for _, q := range queues {
		args = append(args, q)
	}

	job, err := scanJob(s.db.QueryRowContext(ctx, s.q(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: fetch job: %w", err)
	}
	return job, nil
}

func (s *Storage) Complete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE jobkit_jobs
		SET state = ?, server_id = '', updated_at = ?
		WHERE id = ? AND state = ?`),
		string(jobs.StateSucceeded), s.stamp(), id, string(jobs.StateProcessing),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: complete job: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

func (s *Storage) Fail(ctx context.Context, id string, reason string, retryAt *time.Time) error {
	state := jobs.StateFailed
	var scheduledAt sql.NullInt64
	if retryAt != nil {
		state = jobs.StateScheduled
		scheduledAt = sql.NullInt64{Int64: toMicros(*retryAt), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, s.q(`UPDATE jobkit_jobs
		SET state = ?, last_error = ?, server_id = '', scheduled_at = ?, updated_at = ?
		WHERE id = ? AND state = ?`),
		string(state), reason, scheduledAt, s.stamp(), id, string(jobs.StateProcessing),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: fail job: %w", err)
	}
	return s.checkTransition(ctx, res, id)
}

func (s *Storage) Requeue(ctx context.Context, id string) error {
	now := s.stamp()
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE jobkit_jobs
		SET state = ?, server_id = '', scheduled_at = NULL, enqueued_at = ?, updated_at = ?
		WHERE id = ?`),
		string(jobs.StateEnqueued), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: requeue job: %w", err)
	}
	return requireAffected(res, jobs.ErrJobNotFound)
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE jobkit_jobs
		SET state = ?, server_id = '', updated_at = ?
		WHERE id = ?`),
		string(jobs.StateDeleted), s.stamp(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: delete job: %w", err)
	}
	return requireAffected(res, jobs.ErrJobNotFound)
}

func (s *Storage) Get(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, s.q(`SELECT `+jobColumns+` FROM jobkit_jobs WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get job: %w", err)
	}
	return job, nil
}

func (s *Storage) List(ctx context.Context, state jobs.State, offset, limit int) ([]*jobs.Job, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	offset = max(offset, 0)

	query := `SELECT ` + jobColumns + ` FROM jobkit_jobs`
	args := make([]any, 0, 3)
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list jobs: %w", err)
	}
	defer rows.Close()

	list := make([]*jobs.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan job: %w", err)
		}
		list = append(list, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: list jobs: %w", err)
	}
	return list, nil
}

func (s *Storage) Stats(ctx context.Context) (jobs.Stats, error) {
	var stats jobs.Stats

	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobkit_jobs GROUP BY state`)
	if err != nil {
		return stats, fmt.Errorf("sqlstore: stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			state string
			count int64
		)
		if err := rows.Scan(&state, &count); err != nil {
			return stats, fmt.Errorf("sqlstore: stats: %w", err)
		}
		stats.Add(jobs.State(state), count)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("sqlstore: stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobkit_servers`).Scan(&stats.Servers); err != nil {
		return stats, fmt.Errorf("sqlstore: count servers: %w", err)
	}
	return stats, nil
}

// EnqueueDue keeps the original schedule order by using scheduled_at as the
// enqueue position.
func (s *Storage) EnqueueDue(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE jobkit_jobs
		SET state = ?, enqueued_at = scheduled_at, scheduled_at = NULL, updated_at = ?
		WHERE state = ? AND scheduled_at <= ?`),
		string(jobs.StateEnqueued), toMicros(now), string(jobs.StateScheduled), toMicros(now),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: enqueue due jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: enqueue due jobs: %w", err)
	}
	return int(n), nil
}

func (s *Storage) AnnounceServer(ctx context.Context, server jobs.ServerInfo) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO jobkit_servers
		(id, name, queues, worker_count, started_at, heartbeat_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			queues = excluded.queues,
			worker_count = excluded.worker_count,
			started_at = excluded.started_at,
			heartbeat_at = excluded.heartbeat_at`),
		server.ID, server.Name, strings.Join(server.Queues, ","), server.WorkerCount,
		toMicros(server.StartedAt), toMicros(server.HeartbeatAt),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: announce server: %w", err)
	}
	return nil
}

func (s *Storage) Heartbeat(ctx context.Context, serverID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE jobkit_servers SET heartbeat_at = ? WHERE id = ?`), toMicros(at), serverID)
	if err != nil {
		return fmt.Errorf("sqlstore: heartbeat: %w", err)
	}
	return requireAffected(res, jobs.ErrServerNotFound)
}

func (s *Storage) RemoveServer(ctx context.Context, serverID string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM jobkit_servers WHERE id = ?`), serverID); err != nil {
		return fmt.Errorf("sqlstore: remove server: %w", err)
	}
	return nil
}

func (s *Storage) Servers(ctx context.Context) ([]jobs.ServerInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, queues, worker_count, started_at, heartbeat_at FROM jobkit_servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list servers: %w", err)
	}
	defer rows.Close()

	servers := make([]jobs.ServerInfo, 0)
	for rows.Next() {
		var (
			server             jobs.ServerInfo
			queues             string
			started, heartbeat int64
		)
		if err := rows.Scan(&server.ID, &server.Name, &queues, &server.WorkerCount, &started, &heartbeat); err != nil {
			return nil, fmt.Errorf("sqlstore: scan server: %w", err)
		}
		if queues != "" {
			server.Queues = strings.Split(queues, ",")
		}
		server.StartedAt = fromMicros(started)
		server.HeartbeatAt = fromMicros(heartbeat)
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: list servers: %w", err)
	}
	return servers, nil
}

func (s *Storage) RemoveTimedOutServers(ctx context.Context, timeout time.Duration, now time.Time) (int, error) {
	cutoff := toMicros(now.Add(-timeout))
	removed := 0

	err := inTx(ctx, s.db, func(ctx context.Context, tx dbtx) error {
		rows, err := tx.QueryContext(ctx, s.q(`SELECT id FROM jobkit_servers WHERE heartbeat_at < ?`), cutoff)
		if err != nil {
			return err
		}
		var dead []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return err
			}
			dead = append(dead, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range dead {
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE jobkit_jobs
				SET state = ?, server_id = '', enqueued_at = ?, updated_at = ?
				WHERE state = ? AND server_id = ?`),
				string(jobs.StateEnqueued), toMicros(now), toMicros(now), string(jobs.StateProcessing), id,
			); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM jobkit_servers WHERE id = ?`), id); err != nil {
				return err
			}
		}
		removed = len(dead)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sqlstore: remove timed out servers: %w", err)
	}
	return removed, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// checkTransition tells a missing job apart from one in the wrong state.
func (s *Storage) checkTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, s.q(`SELECT 1 FROM jobkit_jobs WHERE id = ?`), id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.ErrJobNotFound
	}
	if err != nil {
		return err
	}
	return jobs.ErrInvalidTransition
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*jobs.Job, error) {
	var (
		job              jobs.Job
		args             sql.NullString
		state            string
		created, updated int64
		scheduledAt      sql.NullInt64
	)
	err := row.Scan(&job.ID, &job.Type, &job.Queue, &args, &state, &job.Attempts, &job.MaxRetries,
		&job.LastError, &job.ServerID, &created, &updated, &scheduledAt)
	if err != nil {
		return nil, err
	}

	job.State = jobs.State(state)
	if args.Valid && args.String != "" {
		job.Args = []byte(args.String)
	}
	job.CreatedAt = fromMicros(created)
	job.UpdatedAt = fromMicros(updated)
	if scheduledAt.Valid {
		at := fromMicros(scheduledAt.Int64)
		job.ScheduledAt = &at
	}
	return &job, nil
}
