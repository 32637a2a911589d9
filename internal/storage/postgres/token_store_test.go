package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
	"stackspad/internal/storage/postgres"
)

func TestTokenStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewTokenStore(pool)
	createTestToken(t, ctx, pool, "SP1.curve-frog", "FROG")

	got, err := store.GetBySymbol(ctx, "FROG")
	require.NoError(t, err)
	assert.Equal(t, "SP1.curve-frog", got.Contract)
	assert.Equal(t, uint64(1_000_000), got.CurrentPrice)
	assert.False(t, got.IsGraduated)

	got, err = store.GetByContract(ctx, "SP1.curve-frog")
	require.NoError(t, err)
	assert.Equal(t, "FROG", got.Symbol)
}

func TestTokenStore_DuplicateSymbol(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewTokenStore(pool)
	createTestToken(t, ctx, pool, "SP1.curve-a", "DUP")

	err := store.Insert(ctx, &domain.Token{
		Contract:  "SP1.curve-b",
		Name:      "Other",
		Symbol:    "DUP",
		Creator:   "SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTokenStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewTokenStore(pool)
	_, err := store.GetBySymbol(ctx, "MISSING")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_ApplyCurveStateCAS(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewTokenStore(pool)
	createTestToken(t, ctx, pool, "SP1.curve-frog", "FROG")

	next := domain.CurveState{TokensSold: 1000, Reserve: 10, CurrentPrice: 1_100_000, MarketCap: 11}
	require.NoError(t, store.ApplyCurveState(ctx, "SP1.curve-frog", 0, next))

	got, err := store.GetByContract(ctx, "SP1.curve-frog")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got.TokensSold)

	// Same expectation again: the row has moved on, the write must lose.
	err = store.ApplyCurveState(ctx, "SP1.curve-frog", 0, next)
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Unknown contract is not a conflict.
	err = store.ApplyCurveState(ctx, "SP1.curve-missing", 0, next)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_GraduationIsIrreversible(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewTokenStore(pool)
	createTestToken(t, ctx, pool, "SP1.curve-frog", "FROG")

	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	changed, err := store.MarkGraduated(ctx, "SP1.curve-frog", first)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.MarkGraduated(ctx, "SP1.curve-frog", first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := store.GetByContract(ctx, "SP1.curve-frog")
	require.NoError(t, err)
	require.NotNil(t, got.GraduatedAt)
	assert.True(t, got.GraduatedAt.Equal(first), "graduated_at must keep its first value")

	// Curve state is frozen after graduation.
	err = store.ApplyCurveState(ctx, "SP1.curve-frog", 0, domain.CurveState{TokensSold: 5})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestTokenStore_ListOrderAndFilter(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewTokenStore(pool)
	createTestToken(t, ctx, pool, "SP1.curve-a", "AAA")
	createTestToken(t, ctx, pool, "SP1.curve-b", "BBB")
	require.NoError(t, store.ApplyCurveState(ctx, "SP1.curve-b", 0, domain.CurveState{TokensSold: 1, MarketCap: 500}))
	_, err := store.MarkGraduated(ctx, "SP1.curve-b", time.Now().UTC())
	require.NoError(t, err)

	graduated := false
	got, err := store.List(ctx, storage.ListTokensOptions{
		Order:      storage.TokenOrderMarketCap,
		Descending: true,
		Graduated:  &graduated,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAA", got[0].Symbol)
}
