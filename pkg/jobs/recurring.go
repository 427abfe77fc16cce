package jobs

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/robfig/cron/v3"
)

// recurringProcess enqueues recurring jobs on their cron schedule. The set of
// recurring jobs is read when the process starts.
type recurringProcess struct {
	server *BackgroundJobServer
	client *Client
}

func newRecurringProcess(s *BackgroundJobServer) *recurringProcess {
	client := NewClient(s.storage, nil)
	client.logger = s.logger
	client.now = s.now
	return &recurringProcess{server: s, client: client}
}

func (p *recurringProcess) Name() string {
	return "recurring"
}

func (p *recurringProcess) Run(ctx context.Context) error {
	s := p.server
	logger := newCronLogger(s.logger)
	scheduler := cron.New(
		cron.WithParser(recurringParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	for _, rj := range s.config.RecurringJobs() {
		if _, err := scheduler.AddJob(rj.Spec, p.job(ctx, rj)); err != nil {
			return &ServerError{Op: "recurring", Message: fmt.Sprintf("failed to schedule %s", rj.ID), Err: err}
		}
		s.logger.Info(ctx, "recurring job scheduled",
			observability.String("recurring_id", rj.ID),
			observability.String("spec", rj.Spec),
			observability.String("job_type", rj.Type),
		)
	}

	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

func (p *recurringProcess) job(ctx context.Context, rj RecurringJob) cron.Job {
	return cron.FuncJob(func() {
		job, err := p.client.Trigger(ctx, rj)
		if err != nil {
			p.server.logger.Error(ctx, "failed to enqueue recurring job",
				observability.String("recurring_id", rj.ID),
				observability.Error(err),
			)
			return
		}
		p.server.logger.Debug(ctx, "recurring job enqueued",
			observability.String("recurring_id", rj.ID),
			observability.String("job_id", job.ID),
		)
	})
}

// cronLogger adapts observability.Logger to cron.Logger.
type cronLogger struct {
	logger observability.Logger
}

func newCronLogger(logger observability.Logger) cron.Logger {
	return &cronLogger{logger: logger.With(observability.String("component", "cron"))}
}

// Info implements cron.Logger. cron reports every tick at this level.
func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(context.Background(), msg, convertKeysAndValues(keysAndValues)...)
}

// Error implements cron.Logger.
func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := append(convertKeysAndValues(keysAndValues), observability.Error(err))
	l.logger.Error(context.Background(), msg, fields...)
}

func convertKeysAndValues(keysAndValues []any) []observability.Field {
	fields := make([]observability.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		switch v := keysAndValues[i+1].(type) {
		case string:
			fields = append(fields, observability.String(key, v))
		case int:
			fields = append(fields, observability.Int(key, v))
		case bool:
			fields = append(fields, observability.Bool(key, v))
		case error:
			fields = append(fields, observability.String(key, v.Error()))
		default:
			fields = append(fields, observability.String(key, fmt.Sprintf("%v", v)))
		}
	}
	return fields
}
