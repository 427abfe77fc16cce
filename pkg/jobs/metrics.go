package jobs

import "github.com/JailtonJunior94/jobkit-go/pkg/observability"

type serverMetrics struct {
	processed observability.Counter
	duration  observability.Histogram
	busy      observability.Gauge
	restarts  observability.Counter
	promoted  observability.Counter
	removed   observability.Counter
}

func newServerMetrics(m observability.Metrics) *serverMetrics {
	return &serverMetrics{
		processed: m.Counter("jobs_processed_total", "Jobs processed by outcome.", "queue", "job_type", "outcome"),
		duration:  m.Histogram("job_duration_seconds", "Job handler duration in seconds.", "queue", "job_type"),
		busy:      m.Gauge("workers_busy", "Workers currently running a job.", "server"),
		restarts:  m.Counter("background_process_restarts_total", "Background process restarts.", "process"),
		promoted:  m.Counter("scheduled_jobs_promoted_total", "Scheduled jobs moved to their queue."),
		removed:   m.Counter("orphaned_servers_removed_total", "Timed out servers removed by the watchdog."),
	}
}
