package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
	"stackspad/internal/storage/postgres"
)

func testActivity(typ domain.ActivityType, txID string, at time.Time) *domain.Activity {
	return &domain.Activity{
		ID:        uuid.NewString(),
		EventType: typ,
		TxID:      txID,
		Address:   "SP3TRADER",
		Token:     "SP1.curve-frog",
		Details:   `{"stx_amount":1000000000}`,
		CreatedAt: at,
	}
}

func TestActivityStore_InsertAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewActivityStore(pool)
	base := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.Insert(ctx, testActivity(domain.ActivityTokenCreated, "0xt1", base)))
	require.NoError(t, store.Insert(ctx, testActivity(domain.ActivityBuy, "0xt2", base.Add(time.Second))))
	require.NoError(t, store.Insert(ctx, testActivity(domain.ActivityBuy, "0xt3", base.Add(2*time.Second))))

	got, err := store.List(ctx, storage.ListActivityOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "0xt3", got[0].TxID, "newest first")
	assert.Equal(t, "0xt1", got[2].TxID)
	assert.JSONEq(t, `{"stx_amount":1000000000}`, got[0].Details)
}

func TestActivityStore_ListFiltersByType(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewActivityStore(pool)
	base := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.Insert(ctx, testActivity(domain.ActivityTokenCreated, "0xt1", base)))
	require.NoError(t, store.Insert(ctx, testActivity(domain.ActivityBuy, "0xt2", base.Add(time.Second))))
	require.NoError(t, store.Insert(ctx, testActivity(domain.ActivityGraduated, "0xt3", base.Add(2*time.Second))))

	got, err := store.List(ctx, storage.ListActivityOptions{EventType: domain.ActivityBuy, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0xt2", got[0].TxID)
}

func TestActivityStore_ListLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewActivityStore(pool)
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, testActivity(domain.ActivityBuy, uuid.NewString(), base.Add(time.Duration(i)*time.Second))))
	}

	got, err := store.List(ctx, storage.ListActivityOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
