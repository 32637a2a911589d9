package reconcile

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackspad/internal/curve"
	"stackspad/internal/domain"
	"stackspad/internal/storage"
	"stackspad/internal/storage/memory"
)

type fixture struct {
	tokens   *memory.TokenStore
	trades   *memory.TradeStore
	activity *memory.ActivityStore
	rec      *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tokens:   memory.NewTokenStore(),
		activity: memory.NewActivityStore(),
	}
	f.trades = memory.NewTradeStore(f.tokens)
	f.rec = New(Options{
		TokenStore:    f.tokens,
		TradeStore:    f.trades,
		ActivityStore: f.activity,
		Logger:        log.New(io.Discard, "", 0),
	})
	return f
}

func registerEvent(txID string) *domain.Event {
	return &domain.Event{
		Type:        domain.EventTokenRegistered,
		TxID:        txID,
		Sender:      "ST1CREATOR",
		BlockHeight: 100,
		BlockTime:   1700000000,
		Registered: &domain.TokenRegistered{
			Name:     "Frog Coin",
			Symbol:   "FROG",
			Contract: "ST1.frog-curve",
		},
	}
}

func buyEvent(txID string, stx, tokens uint64) *domain.Event {
	return &domain.Event{
		Type:        domain.EventBought,
		TxID:        txID,
		Sender:      "ST2TRADER",
		BlockHeight: 101,
		BlockTime:   1700000600,
		Trade: &domain.TradeEvent{
			Token:       "ST1.frog-curve",
			StxAmount:   stx,
			TokenAmount: tokens,
		},
	}
}

func sellEvent(txID string, stx, tokens uint64) *domain.Event {
	ev := buyEvent(txID, stx, tokens)
	ev.Type = domain.EventSold
	return ev
}

func graduationEvent(txID string) *domain.Event {
	return &domain.Event{
		Type:       domain.EventGraduated,
		TxID:       txID,
		Sender:     "ST1CREATOR",
		BlockTime:  1700004000,
		Graduation: &domain.GraduationEvent{Token: "ST1.frog-curve"},
	}
}

func TestReconciler_RegisterThenBuy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	// 10 STX at the initial price.
	stxIn := uint64(1_000_000_000)
	tokensOut := curve.QuoteBuy(stxIn, 0)
	out, err = f.rec.Apply(ctx, buyEvent("0xbuy", stxIn, tokensOut))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	token, err := f.tokens.GetByContract(ctx, "ST1.frog-curve")
	require.NoError(t, err)
	assert.Equal(t, tokensOut, token.TokensSold)
	assert.Equal(t, stxIn, token.Reserve)
	assert.Equal(t, curve.Price(tokensOut), token.CurrentPrice)
	assert.Equal(t, curve.MarketCap(tokensOut), token.MarketCap)

	trade, err := f.trades.GetByTxID(ctx, "0xbuy")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeTypeBuy, trade.Type)
	assert.Equal(t, curve.Price(0), trade.PriceAtTrade, "price recorded at pre-trade state")

	acts, err := f.activity.List(ctx, storage.ListActivityOptions{})
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, domain.ActivityBuy, acts[0].EventType)
	assert.Equal(t, domain.ActivityTokenCreated, acts[1].EventType)
}

func TestReconciler_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)

	out, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)

	buy := buyEvent("0xbuy", 1_000_000_000, curve.QuoteBuy(1_000_000_000, 0))
	_, err = f.rec.Apply(ctx, buy)
	require.NoError(t, err)

	before, _ := f.tokens.GetByContract(ctx, "ST1.frog-curve")
	for i := 0; i < 3; i++ {
		out, err = f.rec.Apply(ctx, buy)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, out)
	}
	after, _ := f.tokens.GetByContract(ctx, "ST1.frog-curve")
	assert.Equal(t, before.TokensSold, after.TokensSold, "duplicates must not move the curve")
	assert.Equal(t, before.Reserve, after.Reserve)
}

func TestReconciler_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)

	// The poll loop and the webhook racing on the same event.
	buy := buyEvent("0xbuy", 1_000_000_000, curve.QuoteBuy(1_000_000_000, 0))
	var wg sync.WaitGroup
	applied := make(chan Outcome, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.rec.Apply(ctx, buy)
			if err == nil {
				applied <- out
			}
		}()
	}
	wg.Wait()
	close(applied)

	var appliedCount int
	for out := range applied {
		if out == OutcomeApplied {
			appliedCount++
		}
	}
	assert.Equal(t, 1, appliedCount, "exactly one delivery wins")

	token, _ := f.tokens.GetByContract(ctx, "ST1.frog-curve")
	assert.Equal(t, curve.QuoteBuy(1_000_000_000, 0), token.TokensSold)
}

func TestReconciler_SellUpdatesStateAndFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)

	stxIn := uint64(1_000_000_000)
	bought := curve.QuoteBuy(stxIn, 0)
	_, err = f.rec.Apply(ctx, buyEvent("0xbuy", stxIn, bought))
	require.NoError(t, err)

	// Small enough that the quote's net stays inside the reserve; the
	// price climbed steeply during the buy.
	sellTokens := uint64(5_000)
	q := curve.QuoteSell(sellTokens, bought)
	require.LessOrEqual(t, q.Net, stxIn)
	out, err := f.rec.Apply(ctx, sellEvent("0xsell", q.Net, sellTokens))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	token, _ := f.tokens.GetByContract(ctx, "ST1.frog-curve")
	assert.Equal(t, bought-sellTokens, token.TokensSold)
	assert.Equal(t, stxIn-q.Net, token.Reserve)

	trade, err := f.trades.GetByTxID(ctx, "0xsell")
	require.NoError(t, err)
	assert.Equal(t, q.PlatformFee, trade.PlatformFee)
	assert.Equal(t, q.CreatorFee, trade.CreatorFee)
}

// flakyTradeStore fails RecordTrade a fixed number of times before
// delegating, mimicking a transient database outage.
type flakyTradeStore struct {
	storage.TradeStore
	failures int
}

func (s *flakyTradeStore) RecordTrade(ctx context.Context, t *domain.Trade, expected uint64, next domain.CurveState) error {
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("connection reset")
	}
	return s.TradeStore.RecordTrade(ctx, t, expected, next)
}

func TestReconciler_RedeliveryHealsTransientStoreFailure(t *testing.T) {
	tokens := memory.NewTokenStore()
	flaky := &flakyTradeStore{TradeStore: memory.NewTradeStore(tokens), failures: 1}
	rec := New(Options{
		TokenStore:    tokens,
		TradeStore:    flaky,
		ActivityStore: memory.NewActivityStore(),
		Logger:        log.New(io.Discard, "", 0),
	})
	ctx := context.Background()

	_, err := rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)

	stxIn := uint64(1_000_000_000)
	bought := curve.QuoteBuy(stxIn, 0)
	buy := buyEvent("0xbuy", stxIn, bought)

	_, err = rec.Apply(ctx, buy)
	require.Error(t, err, "first delivery hits the outage")

	// The failed attempt must leave no trace: no stranded trade row,
	// no half-applied curve.
	_, err = flaky.GetByTxID(ctx, "0xbuy")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	token, err := tokens.GetByContract(ctx, "ST1.frog-curve")
	require.NoError(t, err)
	assert.Zero(t, token.TokensSold)

	out, err := rec.Apply(ctx, buy)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out, "redelivery applies, not duplicate")

	token, err = tokens.GetByContract(ctx, "ST1.frog-curve")
	require.NoError(t, err)
	assert.Equal(t, bought, token.TokensSold)
	assert.Equal(t, stxIn, token.Reserve)
}

func TestReconciler_SellBeyondProjectionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)

	_, err = f.rec.Apply(ctx, sellEvent("0xsell", 1, 1_000_000))
	require.Error(t, err)

	_, err = f.trades.GetByTxID(ctx, "0xsell")
	assert.ErrorIs(t, err, storage.ErrNotFound, "rejected sell leaves no trade row")
}

func TestReconciler_GraduationIsOneWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)

	out, err := f.rec.Apply(ctx, graduationEvent("0xgrad"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	token, _ := f.tokens.GetByContract(ctx, "ST1.frog-curve")
	require.True(t, token.IsGraduated)
	first := *token.GraduatedAt

	out, err = f.rec.Apply(ctx, graduationEvent("0xgrad2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)

	token, _ = f.tokens.GetByContract(ctx, "ST1.frog-curve")
	assert.True(t, token.GraduatedAt.Equal(first))
}

func TestReconciler_TradeAfterGraduationRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)
	_, err = f.rec.Apply(ctx, graduationEvent("0xgrad"))
	require.NoError(t, err)

	out, err := f.rec.Apply(ctx, buyEvent("0xlate", 1_000_000_000, 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, out)

	_, err = f.trades.GetByTxID(ctx, "0xlate")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	acts, err := f.activity.List(ctx, storage.ListActivityOptions{EventType: domain.ActivityTradeRejected})
	require.NoError(t, err)
	assert.Len(t, acts, 1)
}

func TestReconciler_UnknownTokenTradeErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.Apply(context.Background(), buyEvent("0xbuy", 100, 1))
	require.Error(t, err)
}

func TestReconciler_InterleavedTradesStayConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)

	// Distinct trades applied concurrently must serialize cleanly.
	const n = 20
	stxEach := uint64(100_000_000)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Token amount here is nominal; consistency of the fold is
			// what is under test, not curve math.
			ev := buyEvent(fmt.Sprintf("0xbuy%03d", i), stxEach, 1_000)
			for {
				_, err := f.rec.Apply(ctx, ev)
				if err == nil {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	token, err := f.tokens.GetByContract(ctx, "ST1.frog-curve")
	require.NoError(t, err)
	assert.Equal(t, uint64(n*1_000), token.TokensSold)
	assert.Equal(t, uint64(n)*stxEach, token.Reserve)

	trades, err := f.trades.ListByToken(ctx, "ST1.frog-curve", 0)
	require.NoError(t, err)
	assert.Len(t, trades, n)
}

func TestReconciler_DeterministicClock(t *testing.T) {
	fixed := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t)
	f.rec.now = func() time.Time { return fixed }
	ctx := context.Background()

	_, err := f.rec.Apply(ctx, registerEvent("0xreg"))
	require.NoError(t, err)

	token, _ := f.tokens.GetByContract(ctx, "ST1.frog-curve")
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), token.CreatedAt, "created_at comes from block time")
	assert.Equal(t, fixed, token.UpdatedAt)
}
