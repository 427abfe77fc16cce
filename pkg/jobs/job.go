package jobs

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the lifecycle state of a job.
type State string

const (
	StateEnqueued   State = "enqueued"
	StateScheduled  State = "scheduled"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateDeleted    State = "deleted"
)

// States lists every known state in display order.
func States() []State {
	return []State{StateEnqueued, StateScheduled, StateProcessing, StateSucceeded, StateFailed, StateDeleted}
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	for _, known := range States() {
		if s == known {
			return true
		}
	}
	return false
}

// ParseState converts a string into a State.
func ParseState(value string) (State, error) {
	s := State(value)
	if !s.Valid() {
		return "", fmt.Errorf("jobs: unknown state %q", value)
	}
	return s, nil
}

const (
	// DefaultQueue is used when a job is enqueued without OnQueue.
	DefaultQueue = "default"

	// DefaultMaxRetries is the number of automatic retries a failing job gets.
	DefaultMaxRetries = 10
)

// Job is a unit of background work.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Queue       string          `json:"queue"`
	Args        json.RawMessage `json:"args,omitempty"`
	State       State           `json:"state"`
	Attempts    int             `json:"attempts"`
	MaxRetries  int             `json:"max_retries"`
	LastError   string          `json:"last_error,omitempty"`
	ServerID    string          `json:"server_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
}

// Bind decodes the job arguments into v.
func (j *Job) Bind(v any) error {
	if len(j.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(j.Args, v); err != nil {
		return &JobError{JobID: j.ID, Type: j.Type, Op: "bind", Message: "invalid job arguments", Err: err}
	}
	return nil
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	if j.Args != nil {
		c.Args = append(json.RawMessage(nil), j.Args...)
	}
	if j.ScheduledAt != nil {
		at := *j.ScheduledAt
		c.ScheduledAt = &at
	}
	return &c
}

// Stats is a snapshot of job counts per state and live servers.
type Stats struct {
	Enqueued   int64 `json:"enqueued"`
	Scheduled  int64 `json:"scheduled"`
	Processing int64 `json:"processing"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
	Deleted    int64 `json:"deleted"`
	Servers    int64 `json:"servers"`
	Recurring  int64 `json:"recurring"`
}

// Add increments the counter that corresponds to state.
func (s *Stats) Add(state State, n int64) {
	switch state {
	case StateEnqueued:
		s.Enqueued += n
	case StateScheduled:
		s.Scheduled += n
	case StateProcessing:
		s.Processing += n
	case StateSucceeded:
		s.Succeeded += n
	case StateFailed:
		s.Failed += n
	case StateDeleted:
		s.Deleted += n
	}
}

// ServerInfo describes a running BackgroundJobServer.
type ServerInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Queues      []string  `json:"queues"`
	WorkerCount int       `json:"worker_count"`
	StartedAt   time.Time `json:"started_at"`
	HeartbeatAt time.Time `json:"heartbeat_at"`
}
