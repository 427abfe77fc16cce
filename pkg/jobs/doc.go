// Package jobs is a small persistent background job engine.
//
// Jobs are enqueued through a Client into a Storage and executed by a
// BackgroundJobServer, which runs worker loops together with a set of
// housekeeping processes:
//
//   - workers fetch enqueued jobs and run the registered HandlerFunc
//   - the scheduler promotes scheduled jobs (delayed or retried) once due
//   - the heartbeat keeps the server record alive in storage
//   - the watchdog removes dead servers and requeues their jobs
//   - the recurring process enqueues cron-based recurring jobs
//
// Process-wide settings live in the GlobalConfiguration returned by
// Configuration:
//
//	jobs.Configuration().
//		UseStorage(memstore.New()).
//		Handle("email.send", sendEmail)
//
//	client := jobs.NewClient(storage, o11y)
//	client.Enqueue(ctx, "email.send", payload, jobs.OnQueue("critical"))
package jobs
