package domain

import "time"

// TradeType distinguishes buy and sell trades.
type TradeType string

// Trade types.
const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

// Trade is one accepted buy or sell against a bonding curve. Keyed by the
// transaction id, which doubles as the idempotency key: a tx id is recorded
// at most once no matter how many times the chain delivers it. Rows are
// append-only and never updated.
type Trade struct {
	TxID         string
	Token        string // bonding-curve contract of the traded token
	Trader       string
	Type         TradeType
	StxAmount    uint64 // micro-STX moved by the trade
	TokenAmount  uint64 // token base units moved by the trade
	PriceAtTrade uint64 // curve price at the pre-trade state, fixed-point
	PlatformFee  uint64 // micro-STX, sells only
	CreatorFee   uint64 // micro-STX, sells only
	BlockHeight  int64
	ObservedAt   time.Time
}

// LeaderboardEntry aggregates a trader's activity across all tokens.
type LeaderboardEntry struct {
	Address        string
	TotalTrades    int
	TotalVolumeStx uint64 // micro-STX across buys and sells
}
