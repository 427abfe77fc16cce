package commands

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/memstore"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/sqlstore"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
)

// openStorage returns the configured storage and a function releasing it.
func openStorage(ctx context.Context, cfg StorageConfig, o11y observability.Observability) (jobs.Storage, func() error, error) {
	if cfg.Driver == "memory" {
		return memstore.New(), func() error { return nil }, nil
	}

	dialect, err := sqlstore.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Migrate {
		if err := sqlstore.Migrate(ctx, dialect, cfg.DSN, o11y); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate %s storage: %w", dialect, err)
		}
	}

	db, err := sqlstore.Open(ctx, sqlstore.DefaultConfig(dialect, cfg.DSN))
	if err != nil {
		return nil, nil, err
	}

	storage, err := sqlstore.New(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return storage, db.Close, nil
}
