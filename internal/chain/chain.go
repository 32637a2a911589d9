// Package chain reads confirmed contract-call transactions from a Stacks
// API node. It normalizes the two delivery formats the engine consumes,
// the extended-API poll feed and Chainhook webhook payloads, into one
// Transaction shape so downstream decoding does not care where a
// transaction came from.
package chain

import (
	"context"
	"encoding/json"
	"strconv"
)

// Client defines the read-only Stacks API surface the sync loop needs.
type Client interface {
	// GetContractTransactions retrieves recent transactions that touched
	// the given contract principal, newest first, as the API returns them.
	GetContractTransactions(ctx context.Context, contractID string, limit int) ([]Transaction, error)
}

// Transaction statuses as reported by the API.
const (
	StatusSuccess = "success"
)

// Transaction is a confirmed Stacks transaction in normalized form.
type Transaction struct {
	TxID        string
	Status      string
	Sender      string
	BlockHeight int64
	BlockTime   int64 // unix seconds
	Call        *ContractCall
	Prints      []PrintEvent
}

// Succeeded reports whether the transaction committed on chain.
func (t *Transaction) Succeeded() bool {
	return t.Status == StatusSuccess
}

// ContractCall describes the function invocation of a contract-call
// transaction.
type ContractCall struct {
	ContractID   string
	FunctionName string
	Args         []FunctionArg
}

// Arg returns the named argument, or nil.
func (c *ContractCall) Arg(name string) *FunctionArg {
	for i := range c.Args {
		if c.Args[i].Name == name {
			return &c.Args[i]
		}
	}
	return nil
}

// FunctionArg is one named contract-call argument with its Clarity repr.
type FunctionArg struct {
	Name string
	Repr string
}

// PrintEvent is one contract print emitted during execution, with its
// tuple payload flattened into a Payload map.
type PrintEvent struct {
	Contract string
	Payload  Payload
}

// Payload holds a decoded Clarity tuple. Values are string, uint64 or
// bool depending on the on-chain type. Keys are snake_case regardless
// of delivery format.
type Payload map[string]interface{}

// Str returns the string value under key, or "".
func (p Payload) Str(key string) string {
	s, _ := p[key].(string)
	return s
}

// Uint returns the unsigned value under key. JSON deliveries carry
// numbers as json.Number or decimal strings, so those are accepted too.
// float64 is tolerated for small values but loses integer precision
// above 2^53, which is why webhook payloads decode with UseNumber.
func (p Payload) Uint(key string) (uint64, bool) {
	switch v := p[key].(type) {
	case uint64:
		return v, true
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
