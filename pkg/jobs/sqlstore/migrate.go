package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability/noop"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsTable is the golang-migrate version table used by jobkit.
const MigrationsTable = "jobkit_schema_migrations"

// Migrate applies every pending schema migration. It opens a dedicated
// connection and closes it before returning, so it can run while a Storage
// is serving the same database.
func Migrate(ctx context.Context, dialect Dialect, dsn string, o11y observability.Observability) error {
	if o11y == nil {
		o11y = noop.NewProvider()
	}
	logger := o11y.Logger().With(observability.String("dialect", string(dialect)))

	if !dialect.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}
	if dsn == "" {
		return ErrMissingDSN
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}

	m, err := newMigrate(dialect, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		// closes db as well
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, "failed to close migrator", observability.Error(errors.Join(srcErr, dbErr)))
		}
	}()

	logger.Info(ctx, "starting migration UP")

	done := make(chan error, 1)
	go func() {
		done <- m.Up()
	}()

	select {
	case <-ctx.Done():
		m.GracefulStop <- true
		<-done
		return fmt.Errorf("migration UP cancelled: %w", ctx.Err())
	case err = <-done:
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info(ctx, "no migrations to apply, database is up to date")
		return nil
	}

	version, dirty, vErr := m.Version()
	if err != nil {
		logger.Error(ctx, "migration UP failed",
			observability.Error(err),
			observability.Int64("version", int64(version)),
			observability.Bool("dirty", dirty),
		)
		return fmt.Errorf("migration UP failed: %w", err)
	}
	if vErr != nil {
		return fmt.Errorf("failed to read migration version: %w", vErr)
	}

	logger.Info(ctx, "migration UP completed", observability.Int64("version", int64(version)))
	return nil
}

func newMigrate(dialect Dialect, db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case DialectPostgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: MigrationsTable})
	case DialectSQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: MigrationsTable})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s migration driver: %w", dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrate instance: %w", err)
	}
	return m, nil
}
