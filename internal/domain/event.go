package domain

// EventType tags the closed set of domain events decoded from chain
// transactions.
type EventType string

// Decoded event types.
const (
	EventTokenRegistered EventType = "token_registered"
	EventBought          EventType = "bought"
	EventSold            EventType = "sold"
	EventGraduated       EventType = "graduated"
)

// Event is one decoded launchpad event. Exactly one of the payload pointers
// matching Type is set; the shared fields always carry the originating
// transaction.
type Event struct {
	Type        EventType
	TxID        string
	Sender      string
	BlockHeight int64
	BlockTime   int64 // unix seconds

	Registered *TokenRegistered
	Trade      *TradeEvent
	Graduation *GraduationEvent
}

// TokenRegistered is the payload of a register-token call's token-created
// print event.
type TokenRegistered struct {
	Name        string
	Symbol      string
	Contract    string // bonding-curve contract assigned to the token
	ImageURI    string
	Description string
}

// TradeEvent is the payload of a buy or sell print event. Amounts are in the
// contract's 8-decimal base units.
type TradeEvent struct {
	Token       string // bonding-curve contract of the traded token
	StxAmount   uint64 // micro-STX in (buy) or out (sell)
	TokenAmount uint64 // tokens out (buy) or in (sell)
}

// GraduationEvent is the payload of a token-graduated print event.
type GraduationEvent struct {
	Token string
}
