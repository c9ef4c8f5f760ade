package testutil

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/rewardhub"
	"github.com/set-night/rewardhub/internal/repository"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestDatabase is a migrated PostgreSQL container for integration tests.
type TestDatabase struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	URL       string
}

// SetupTestDatabase starts PostgreSQL, applies the schema and returns a pool.
// The test is skipped in -short mode or when no container runtime is
// reachable. Everything is torn down through t.Cleanup.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("rewardhub_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{
			"test":      "rewardhub-repository",
			"test-name": t.Name(),
		}),
	)
	require.NoError(t, err)

	db := &TestDatabase{Container: container}
	t.Cleanup(func() {
		if db.Pool != nil {
			db.Pool.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate test container: %v", err)
		}
	})

	db.URL, err = container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrations, err := fs.Sub(rewardhub.MigrationsFS, "migrations")
	require.NoError(t, err)
	require.NoError(t, repository.RunMigrations(db.URL, migrations))

	db.Pool, err = repository.NewPool(ctx, db.URL, repository.PoolOptions{MaxConns: 5})
	require.NoError(t, err)
	return db
}
