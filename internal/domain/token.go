package domain

import "time"

// Token is the off-chain projection of one launched token's on-chain state.
// Identity is the bonding-curve contract principal; the symbol is the business
// key used for lookup before a contract address is known.
type Token struct {
	Contract    string // contract principal, unique and immutable
	Name        string
	Symbol      string // unique business key
	Creator     string // principal that registered the token
	ImageURI    string
	Description string

	// Curve state, all in the contract's 8-decimal base units.
	TokensSold   uint64 // monotonically non-decreasing while not graduated
	Reserve      uint64 // micro-STX held by the curve
	CurrentPrice uint64 // derived, recomputed on every mutation
	MarketCap    uint64 // derived, micro-STX

	IsGraduated bool
	GraduatedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurveState is the mutable portion of a Token written by trade reconciliation.
type CurveState struct {
	TokensSold   uint64
	Reserve      uint64
	CurrentPrice uint64
	MarketCap    uint64
}

// CurveState returns the token's current curve state.
func (t *Token) CurveState() CurveState {
	return CurveState{
		TokensSold:   t.TokensSold,
		Reserve:      t.Reserve,
		CurrentPrice: t.CurrentPrice,
		MarketCap:    t.MarketCap,
	}
}
