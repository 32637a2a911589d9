package domain

import "time"

// ActivityType enumerates the events recorded on the activity timeline.
type ActivityType string

// Activity event types.
const (
	ActivityTokenCreated  ActivityType = "token_created"
	ActivityBuy           ActivityType = "buy"
	ActivitySell          ActivityType = "sell"
	ActivityGraduated     ActivityType = "graduated"
	ActivityTradeRejected ActivityType = "trade_rejected"
)

// Activity is one append-only audit entry, written once per accepted domain
// event (and for materially rejected attempts). Never updated or deleted.
type Activity struct {
	ID        string // uuid
	EventType ActivityType
	TxID      string
	Address   string // principal that caused the event
	Token     string // bonding-curve contract, empty when not token-scoped
	Details   string // free-form JSON
	CreatedAt time.Time
}
