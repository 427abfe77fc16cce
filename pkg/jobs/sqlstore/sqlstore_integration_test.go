//go:build integration

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/jobs/storagetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts one container per test run and truncates the tables
// between subtests.
func setupPostgres(t *testing.T) (*Storage, func(t *testing.T)) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("jobkit"),
		postgres.WithUsername("jobkit"),
		postgres.WithPassword("jobkit"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, DialectPostgres, dsn, nil))

	db, err := Open(ctx, DefaultConfig(DialectPostgres, dsn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := New(db, DialectPostgres)
	require.NoError(t, err)

	reset := func(t *testing.T) {
		_, err := db.ExecContext(ctx, `TRUNCATE jobkit_jobs, jobkit_servers`)
		require.NoError(t, err)
	}
	return s, reset
}

func TestPostgres_Conformance(t *testing.T) {
	s, reset := setupPostgres(t)

	storagetest.Run(t, func(t *testing.T) jobs.Storage {
		reset(t)
		return s
	})
}
