package commands

import (
	"context"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/webhook"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
)

func registerBuiltinHandlers(c *jobs.GlobalConfiguration, o11y observability.Observability) {
	logger := o11y.Logger()

	c.Handle("http", webhook.Handler(o11y))

	c.Handle("log", func(ctx context.Context, job *jobs.Job) error {
		var payload any
		if len(job.Args) > 0 {
			if err := job.Bind(&payload); err != nil {
				return jobs.Permanent(err)
			}
		}
		logger.Info(ctx, "log job",
			observability.String("job_id", job.ID),
			observability.Any("args", payload),
		)
		return nil
	})

	c.Handle("sleep", func(ctx context.Context, job *jobs.Job) error {
		var payload struct {
			Duration string `json:"duration"`
		}
		if err := job.Bind(&payload); err != nil {
			return jobs.Permanent(err)
		}
		d, err := time.ParseDuration(payload.Duration)
		if err != nil {
			return jobs.Permanent(err)
		}

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})
}
