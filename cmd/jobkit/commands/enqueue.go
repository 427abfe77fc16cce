package commands

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/spf13/cobra"
)

var (
	enqueueArgs    string
	enqueueQueue   string
	enqueueIn      time.Duration
	enqueueRetries int
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue TYPE",
	Short: "Create a job in the configured storage",
	Long: `Create a job of TYPE with JSON arguments.

Examples:
  jobkit enqueue log --args '{"message":"hello"}'
  jobkit enqueue report.daily --queue reports --in 10m`,
	Args: cobra.ExactArgs(1),
	RunE: runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueArgs, "args", "", "job arguments as JSON")
	enqueueCmd.Flags().StringVar(&enqueueQueue, "queue", jobs.DefaultQueue, "target queue")
	enqueueCmd.Flags().DurationVar(&enqueueIn, "in", 0, "delay before the job is enqueued")
	enqueueCmd.Flags().IntVar(&enqueueRetries, "retries", jobs.DefaultMaxRetries, "maximum retries")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver == "memory" {
		return errors.New("enqueue needs a persistent storage driver")
	}

	var payload json.RawMessage
	if enqueueArgs != "" {
		if !json.Valid([]byte(enqueueArgs)) {
			return errors.New("--args must be valid JSON")
		}
		payload = json.RawMessage(enqueueArgs)
	}

	o11y, err := newObservability(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = o11y.Close() }()

	storage, closeStorage, err := openStorage(cmd.Context(), cfg.Storage, o11y)
	if err != nil {
		return err
	}
	defer func() { _ = closeStorage() }()

	opts := []jobs.EnqueueOption{jobs.OnQueue(enqueueQueue), jobs.WithMaxRetries(enqueueRetries)}
	if enqueueIn > 0 {
		opts = append(opts, jobs.ScheduleIn(enqueueIn))
	}

	job, err := jobs.NewClient(storage, o11y).Enqueue(cmd.Context(), args[0], payload, opts...)
	if err != nil {
		return err
	}

	cmd.Printf("%s %s\n", job.ID, job.State)
	return nil
}
