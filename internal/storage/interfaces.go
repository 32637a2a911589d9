package storage

import (
	"context"
	"time"

	"stackspad/internal/domain"
)

// TokenOrder selects the sort column for token listings.
type TokenOrder string

// Token list orderings.
const (
	TokenOrderCreatedAt TokenOrder = "created_at"
	TokenOrderMarketCap TokenOrder = "market_cap"
)

// ListTokensOptions filters and orders token listings.
type ListTokensOptions struct {
	Order      TokenOrder
	Descending bool
	Graduated  *bool // nil = no filter
	Limit      int   // 0 = no limit
}

// ListActivityOptions filters the activity timeline.
type ListActivityOptions struct {
	EventType domain.ActivityType // empty = all
	Limit     int
}

// TokenStore provides access to the token projection.
type TokenStore interface {
	// Insert adds a new token projection. Returns ErrDuplicateKey if the
	// symbol or contract address already exists.
	Insert(ctx context.Context, t *domain.Token) error

	// GetBySymbol retrieves a token by symbol. Returns ErrNotFound if absent.
	GetBySymbol(ctx context.Context, symbol string) (*domain.Token, error)

	// GetByContract retrieves a token by contract address. Returns ErrNotFound if absent.
	GetByContract(ctx context.Context, contract string) (*domain.Token, error)

	// List retrieves tokens per the given options.
	List(ctx context.Context, opts ListTokensOptions) ([]*domain.Token, error)

	// ApplyCurveState conditionally replaces the token's curve state.
	// The write only happens when the stored tokens_sold still equals
	// expectedTokensSold and the token is not graduated; otherwise
	// ErrConflict is returned and nothing changes. This is the
	// compare-and-swap that keeps concurrent trade application from
	// losing updates.
	ApplyCurveState(ctx context.Context, contract string, expectedTokensSold uint64, next domain.CurveState) error

	// MarkGraduated sets is_graduated and stamps graduated_at, once.
	// Returns (false, nil) when the token was already graduated; the
	// stored graduated_at is never overwritten.
	MarkGraduated(ctx context.Context, contract string, at time.Time) (bool, error)
}

// TradeStore provides access to the append-only trade ledger.
type TradeStore interface {
	// Insert adds a trade. Returns ErrDuplicateKey if the tx id was already
	// recorded; this insert-if-absent is the idempotency gate for trades.
	Insert(ctx context.Context, t *domain.Trade) error

	// RecordTrade inserts the trade and conditionally replaces the token's
	// curve state in one atomic step: both writes land or neither does, so
	// a trade row in the ledger always implies its curve update committed.
	// Returns ErrDuplicateKey when the tx id was already recorded,
	// ErrConflict when the stored tokens_sold no longer equals
	// expectedTokensSold or the token graduated, ErrNotFound when the
	// token row is missing.
	RecordTrade(ctx context.Context, t *domain.Trade, expectedTokensSold uint64, next domain.CurveState) error

	// GetByTxID retrieves a trade by tx id. Returns ErrNotFound if absent.
	GetByTxID(ctx context.Context, txID string) (*domain.Trade, error)

	// ListByToken retrieves trades for a token, newest first.
	ListByToken(ctx context.Context, contract string, limit int) ([]*domain.Trade, error)

	// Leaderboard aggregates traders by total volume, highest first.
	Leaderboard(ctx context.Context, limit int) ([]*domain.LeaderboardEntry, error)
}

// ActivityStore provides access to the append-only activity timeline.
type ActivityStore interface {
	// Insert adds an activity entry.
	Insert(ctx context.Context, a *domain.Activity) error

	// List retrieves entries per the given options, newest first.
	List(ctx context.Context, opts ListActivityOptions) ([]*domain.Activity, error)
}
