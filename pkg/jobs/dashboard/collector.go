package dashboard

import (
	"context"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/prometheus/client_golang/prometheus"
)

// statsCollector exposes storage counts as gauges on every scrape.
type statsCollector struct {
	storage jobs.Storage
	jobs    *prometheus.Desc
	servers *prometheus.Desc
}

func newStatsCollector(storage jobs.Storage) *statsCollector {
	return &statsCollector{
		storage: storage,
		jobs: prometheus.NewDesc("jobkit_jobs",
			"Number of jobs per state.", []string{"state"}, nil),
		servers: prometheus.NewDesc("jobkit_servers",
			"Number of registered background job servers.", nil, nil),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobs
	ch <- c.servers
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := c.storage.Stats(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.jobs, err)
		return
	}

	for state, value := range map[jobs.State]int64{
		jobs.StateEnqueued:   s.Enqueued,
		jobs.StateScheduled:  s.Scheduled,
		jobs.StateProcessing: s.Processing,
		jobs.StateSucceeded:  s.Succeeded,
		jobs.StateFailed:     s.Failed,
		jobs.StateDeleted:    s.Deleted,
	} {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(value), string(state))
	}
	ch <- prometheus.MustNewConstMetric(c.servers, prometheus.GaugeValue, float64(s.Servers))
}
