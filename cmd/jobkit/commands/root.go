// Package commands implements the jobkit command line.
package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "jobkit",
	Short: "jobkit - background jobs with a web dashboard",
	Long: `jobkit runs background job servers backed by PostgreSQL, SQLite or
memory storage and serves a JSON dashboard to inspect and manage jobs.

Configuration is read from a YAML file and JOBKIT_* environment variables,
for example JOBKIT_STORAGE_DRIVER=postgres or JOBKIT_HTTP_PORT=9090.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
