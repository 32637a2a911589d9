package domain

import "github.com/shopspring/decimal"

// BaseUnit is the contract's fixed-point scale: both STX amounts and token
// amounts are carried as integers in 1e-8 units. This is the only divisor in
// the codebase; every base-unit field stays integral until it crosses the API
// boundary through DisplayAmount.
const BaseUnit = 100_000_000

// DisplayAmount converts a base-unit amount to its human-readable decimal
// value. Exact, no floating point.
func DisplayAmount(base uint64) decimal.Decimal {
	return decimal.NewFromUint64(base).Shift(-8)
}
