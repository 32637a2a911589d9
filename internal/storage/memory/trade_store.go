package memory

import (
	"context"
	"sort"
	"sync"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore. It
// holds a reference to the token store so RecordTrade can land the trade
// row and the curve update together.
type TradeStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Trade // keyed by tx id
	tokens *TokenStore
}

// NewTradeStore creates a new in-memory trade store backed by the given
// token store.
func NewTradeStore(tokens *TokenStore) *TradeStore {
	return &TradeStore{
		data:   make(map[string]*domain.Trade),
		tokens: tokens,
	}
}

var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a trade. Returns ErrDuplicateKey if the tx id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TxID == "" || t.Token == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TxID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TxID] = &copy
	return nil
}

// RecordTrade atomically inserts the trade and applies the curve update.
// The curve write runs before the trade row is stored, so a conflict or
// missing token leaves the ledger untouched.
func (s *TradeStore) RecordTrade(ctx context.Context, t *domain.Trade, expectedTokensSold uint64, next domain.CurveState) error {
	if t == nil || t.TxID == "" || t.Token == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TxID]; exists {
		return storage.ErrDuplicateKey
	}
	if err := s.tokens.ApplyCurveState(ctx, t.Token, expectedTokensSold, next); err != nil {
		return err
	}

	copy := *t
	s.data[t.TxID] = &copy
	return nil
}

// GetByTxID retrieves a trade by tx id.
func (s *TradeStore) GetByTxID(_ context.Context, txID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[txID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// ListByToken retrieves trades for a token, newest first.
func (s *TradeStore) ListByToken(_ context.Context, contract string, limit int) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Token == contract {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ObservedAt.After(result[j].ObservedAt)
		}
		return result[i].TxID < result[j].TxID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Leaderboard aggregates traders by total volume, highest first.
func (s *TradeStore) Leaderboard(_ context.Context, limit int) ([]*domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTrader := make(map[string]*domain.LeaderboardEntry)
	for _, t := range s.data {
		entry, ok := byTrader[t.Trader]
		if !ok {
			entry = &domain.LeaderboardEntry{Address: t.Trader}
			byTrader[t.Trader] = entry
		}
		entry.TotalTrades++
		entry.TotalVolumeStx += t.StxAmount
	}

	result := make([]*domain.LeaderboardEntry, 0, len(byTrader))
	for _, e := range byTrader {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalVolumeStx != result[j].TotalVolumeStx {
			return result[i].TotalVolumeStx > result[j].TotalVolumeStx
		}
		return result[i].Address < result[j].Address
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
