package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"stackspad/internal/domain"
	"stackspad/internal/storage/migrations"
	"stackspad/internal/storage/postgres"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// embedded migrations. Returns a cleanup function that must be called after
// tests complete.
func setupTestDB(t *testing.T) (*postgres.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	// testcontainers panics (rather than returning an error) when no Docker
	// host can be found at all; fold that into the same skip path.
	container, err := func() (c *tcpostgres.PostgresContainer, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("docker not available: %v", r)
			}
		}()
		return tcpostgres.Run(ctx, "postgres:15-alpine",
			tcpostgres.WithDatabase("testdb"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
	}()
	if err != nil {
		t.Skipf("skipping: could not start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool), "failed to run migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// createTestToken inserts a token projection and returns its contract address.
func createTestToken(t *testing.T, ctx context.Context, pool *postgres.Pool, contract, symbol string) string {
	t.Helper()

	store := postgres.NewTokenStore(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	err := store.Insert(ctx, &domain.Token{
		Contract:     contract,
		Name:         "Test Token",
		Symbol:       symbol,
		Creator:      "SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9",
		CurrentPrice: 1_000_000,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return contract
}
