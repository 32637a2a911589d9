// Package memory provides in-memory storage implementations. They honor the
// same insert-if-absent and conditional-update contracts as the Postgres
// stores, so the reconciler behaves identically against either backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu         sync.RWMutex
	byContract map[string]*domain.Token
	bySymbol   map[string]string // symbol -> contract
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		byContract: make(map[string]*domain.Token),
		bySymbol:   make(map[string]string),
	}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if the symbol or contract exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.Contract == "" || t.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byContract[t.Contract]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.bySymbol[t.Symbol]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.byContract[t.Contract] = &copy
	s.bySymbol[t.Symbol] = t.Contract
	return nil
}

// GetBySymbol retrieves a token by symbol.
func (s *TokenStore) GetBySymbol(_ context.Context, symbol string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contract, ok := s.bySymbol[symbol]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *s.byContract[contract]
	return &copy, nil
}

// GetByContract retrieves a token by contract address.
func (s *TokenStore) GetByContract(_ context.Context, contract string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byContract[contract]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// List retrieves tokens per the given options.
func (s *TokenStore) List(_ context.Context, opts storage.ListTokensOptions) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.byContract {
		if opts.Graduated != nil && t.IsGraduated != *opts.Graduated {
			continue
		}
		copy := *t
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		var less bool
		switch opts.Order {
		case storage.TokenOrderMarketCap:
			less = result[i].MarketCap < result[j].MarketCap
		default:
			less = result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		if opts.Descending {
			return !less
		}
		return less
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// ApplyCurveState conditionally replaces the token's curve state.
func (s *TokenStore) ApplyCurveState(_ context.Context, contract string, expectedTokensSold uint64, next domain.CurveState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byContract[contract]
	if !ok {
		return storage.ErrNotFound
	}
	if t.IsGraduated || t.TokensSold != expectedTokensSold {
		return storage.ErrConflict
	}

	t.TokensSold = next.TokensSold
	t.Reserve = next.Reserve
	t.CurrentPrice = next.CurrentPrice
	t.MarketCap = next.MarketCap
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkGraduated sets is_graduated once. Returns false if already graduated.
func (s *TokenStore) MarkGraduated(_ context.Context, contract string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byContract[contract]
	if !ok {
		return false, storage.ErrNotFound
	}
	if t.IsGraduated {
		return false, nil
	}

	t.IsGraduated = true
	graduatedAt := at
	t.GraduatedAt = &graduatedAt
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}
