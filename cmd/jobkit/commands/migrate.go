package commands

import (
	"errors"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/sqlstore"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the job storage schema",
	Long: `Apply pending schema migrations to the configured SQL storage.

Examples:
  # PostgreSQL
  JOBKIT_STORAGE_DRIVER=postgres JOBKIT_STORAGE_DSN=postgres://... jobkit migrate

  # SQLite
  jobkit migrate --config jobkit.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver == "memory" {
		return errors.New("memory storage has no schema to migrate")
	}

	o11y, err := newObservability(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = o11y.Close() }()

	dialect, err := sqlstore.ParseDialect(cfg.Storage.Driver)
	if err != nil {
		return err
	}
	if err := sqlstore.Migrate(cmd.Context(), dialect, cfg.Storage.DSN, o11y); err != nil {
		return err
	}

	cmd.Printf("Migrations completed successfully (driver: %s)\n", dialect)
	return nil
}
