// Package stub provides an in-memory chain.Client for tests.
package stub

import (
	"context"
	"sync"

	"stackspad/internal/chain"
)

// Client implements chain.Client from canned transaction lists.
type Client struct {
	mu           sync.Mutex
	Transactions map[string][]chain.Transaction // keyed by contract principal
	Err          error                          // returned by every call when set
	Calls        int
}

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{Transactions: make(map[string][]chain.Transaction)}
}

// GetContractTransactions returns the canned transactions for the contract,
// honoring the limit the way the real API does.
func (c *Client) GetContractTransactions(_ context.Context, contractID string, limit int) ([]chain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	txs := c.Transactions[contractID]
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	out := make([]chain.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}
