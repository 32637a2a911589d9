package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
	"stackspad/internal/storage/postgres"
)

func testTrade(token, txID, trader string, typ domain.TradeType, stx uint64) *domain.Trade {
	return &domain.Trade{
		TxID:         txID,
		Token:        token,
		Trader:       trader,
		Type:         typ,
		StxAmount:    stx,
		TokenAmount:  stx * 100,
		PriceAtTrade: 1_000_000,
		BlockHeight:  120,
		ObservedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestTradeStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	token := createTestToken(t, ctx, pool, "SP1.curve-frog", "FROG")
	store := postgres.NewTradeStore(pool)

	tr := testTrade(token, "0xabc001", "SP3TRADER", domain.TradeTypeBuy, 1_000_000_000)
	require.NoError(t, store.Insert(ctx, tr))

	got, err := store.GetByTxID(ctx, "0xabc001")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeTypeBuy, got.Type)
	assert.Equal(t, uint64(1_000_000_000), got.StxAmount)
	assert.Equal(t, uint64(1_000_000), got.PriceAtTrade)
	assert.Equal(t, int64(120), got.BlockHeight)
}

func TestTradeStore_DuplicateTxID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	token := createTestToken(t, ctx, pool, "SP1.curve-frog", "FROG")
	store := postgres.NewTradeStore(pool)

	require.NoError(t, store.Insert(ctx, testTrade(token, "0xdup", "SP3TRADER", domain.TradeTypeBuy, 100)))
	err := store.Insert(ctx, testTrade(token, "0xdup", "SP3TRADER", domain.TradeTypeBuy, 100))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_RecordTradeIsAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	token := createTestToken(t, ctx, pool, "SP1.curve-frog", "FROG")
	tokens := postgres.NewTokenStore(pool)
	store := postgres.NewTradeStore(pool)

	next := domain.CurveState{
		TokensSold:   100_000_000_000,
		Reserve:      1_000_000_000,
		CurrentPrice: 10_001_000_000,
		MarketCap:    10_001_000_000_000,
	}
	tr := testTrade(token, "0xatomic", "SP3TRADER", domain.TradeTypeBuy, 1_000_000_000)
	require.NoError(t, store.RecordTrade(ctx, tr, 0, next))

	got, err := tokens.GetByContract(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, next.TokensSold, got.TokensSold)
	assert.Equal(t, next.Reserve, got.Reserve)
	_, err = store.GetByTxID(ctx, "0xatomic")
	assert.NoError(t, err)

	// Stale expectation rolls back the whole transaction; the trade row
	// must not survive a curve conflict.
	stale := testTrade(token, "0xstale", "SP3TRADER", domain.TradeTypeBuy, 100)
	err = store.RecordTrade(ctx, stale, 0, next)
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = store.GetByTxID(ctx, "0xstale")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A duplicate tx id must not move the curve again.
	err = store.RecordTrade(ctx, tr, next.TokensSold, domain.CurveState{TokensSold: 1})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	got, err = tokens.GetByContract(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, next.TokensSold, got.TokensSold)
}

func TestTradeStore_RecordTradeMissingToken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewTradeStore(pool)
	tr := testTrade("SP1.curve-ghost", "0xghost", "SP3TRADER", domain.TradeTypeBuy, 100)
	err := store.RecordTrade(ctx, tr, 0, domain.CurveState{TokensSold: 10})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetByTxID(ctx, "0xghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := postgres.NewTradeStore(pool)
	_, err := store.GetByTxID(ctx, "0xmissing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_ListByTokenNewestFirst(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	token := createTestToken(t, ctx, pool, "SP1.curve-frog", "FROG")
	other := createTestToken(t, ctx, pool, "SP1.curve-dog", "DOG")
	store := postgres.NewTradeStore(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		tr := testTrade(token, fmt.Sprintf("0xtx%03d", i), "SP3TRADER", domain.TradeTypeBuy, 100)
		tr.ObservedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Insert(ctx, tr))
	}
	require.NoError(t, store.Insert(ctx, testTrade(other, "0xother", "SP3TRADER", domain.TradeTypeBuy, 100)))

	got, err := store.ListByToken(ctx, token, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0xtx002", got[0].TxID)
	assert.Equal(t, "0xtx001", got[1].TxID)
}

func TestTradeStore_Leaderboard(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	token := createTestToken(t, ctx, pool, "SP1.curve-frog", "FROG")
	store := postgres.NewTradeStore(pool)

	require.NoError(t, store.Insert(ctx, testTrade(token, "0xa1", "SP3ALICE", domain.TradeTypeBuy, 500)))
	require.NoError(t, store.Insert(ctx, testTrade(token, "0xa2", "SP3ALICE", domain.TradeTypeSell, 300)))
	require.NoError(t, store.Insert(ctx, testTrade(token, "0xb1", "SP3BOB", domain.TradeTypeBuy, 1000)))

	got, err := store.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "SP3BOB", got[0].Address)
	assert.Equal(t, uint64(1000), got[0].TotalVolumeStx)
	assert.Equal(t, 1, got[0].TotalTrades)
	assert.Equal(t, "SP3ALICE", got[1].Address)
	assert.Equal(t, uint64(800), got[1].TotalVolumeStx)
	assert.Equal(t, 2, got[1].TotalTrades)
}
