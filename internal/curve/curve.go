// Package curve reproduces the on-chain bonding-curve arithmetic.
//
// Every function here must return bit-for-bit what the bonding-curve contract
// returns for the same inputs: the server stamps price_at_trade with these
// values and clients derive slippage minimums from the quotes, so any
// divergence either corrupts the projection or makes the chain reject trades
// the UI promised. All arithmetic runs over math/big to match the contract's
// 128-bit unsigned domain; intermediates like stxIn*Scale exceed uint64.
package curve

import "math/big"

// Contract constants, 8-decimal fixed point.
const (
	// InitialPrice is the curve price at zero tokens sold (0.01 STX).
	InitialPrice = 1_000_000
	// Slope is the price increment per base unit of tokens sold.
	Slope = 100
	// Scale is the fixed-point scale shared by prices and amounts.
	Scale = 100_000_000
	// PlatformFeeBps and CreatorFeeBps are the sell fees in basis points.
	PlatformFeeBps = 100
	CreatorFeeBps  = 100
	// GraduationThreshold is the market cap, in micro-STX, at which a token
	// leaves the curve (69,000 STX).
	GraduationThreshold = 6_900_000_000_000
)

const bpsDenom = 10_000

// Price returns the curve price after tokensSold base units have been sold:
// InitialPrice + tokensSold*Slope.
func Price(tokensSold uint64) uint64 {
	p := new(big.Int).SetUint64(tokensSold)
	p.Mul(p, big.NewInt(Slope))
	p.Add(p, big.NewInt(InitialPrice))
	return p.Uint64()
}

// QuoteBuy returns the token base units bought with stxIn micro-STX at the
// given pre-trade state: floor(stxIn*Scale/price). Floor division matches the
// contract; the quote never promises more than the chain will mint.
func QuoteBuy(stxIn, tokensSold uint64) uint64 {
	if stxIn == 0 {
		return 0
	}
	out := new(big.Int).SetUint64(stxIn)
	out.Mul(out, big.NewInt(Scale))
	out.Quo(out, new(big.Int).SetUint64(Price(tokensSold)))
	return out.Uint64()
}

// SellQuote breaks down the proceeds of a sell. All values in micro-STX.
type SellQuote struct {
	Gross       uint64 // floor(tokensIn*price/Scale) before fees
	PlatformFee uint64
	CreatorFee  uint64
	Net         uint64 // what the seller receives
}

// QuoteSell returns the micro-STX proceeds of selling tokensIn base units at
// the given pre-trade state. Fees are computed in integer basis points and
// floored, exactly as the contract deducts them.
func QuoteSell(tokensIn, tokensSold uint64) SellQuote {
	gross := new(big.Int).SetUint64(tokensIn)
	gross.Mul(gross, new(big.Int).SetUint64(Price(tokensSold)))
	gross.Quo(gross, big.NewInt(Scale))

	platform := new(big.Int).Mul(gross, big.NewInt(PlatformFeeBps))
	platform.Quo(platform, big.NewInt(bpsDenom))
	creator := new(big.Int).Mul(gross, big.NewInt(CreatorFeeBps))
	creator.Quo(creator, big.NewInt(bpsDenom))

	net := new(big.Int).Sub(gross, platform)
	net.Sub(net, creator)

	return SellQuote{
		Gross:       gross.Uint64(),
		PlatformFee: platform.Uint64(),
		CreatorFee:  creator.Uint64(),
		Net:         net.Uint64(),
	}
}

// MarketCap values the sold supply at the current price:
// floor(tokensSold*price/Scale), in micro-STX.
func MarketCap(tokensSold uint64) uint64 {
	mc := new(big.Int).SetUint64(tokensSold)
	mc.Mul(mc, new(big.Int).SetUint64(Price(tokensSold)))
	mc.Quo(mc, big.NewInt(Scale))
	return mc.Uint64()
}

// GraduationProgress returns marketCap/GraduationThreshold clamped to 1.0.
func GraduationProgress(marketCap uint64) float64 {
	if marketCap >= GraduationThreshold {
		return 1.0
	}
	return float64(marketCap) / float64(GraduationThreshold)
}
