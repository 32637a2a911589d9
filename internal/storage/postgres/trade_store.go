package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeSQL = `
	INSERT INTO trades (
		tx_id, token_contract, trader, trade_type,
		stx_amount, token_amount, price_at_trade, platform_fee, creator_fee,
		block_height, observed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

func tradeInsertArgs(t *domain.Trade) []any {
	return []any{
		t.TxID,
		t.Token,
		t.Trader,
		string(t.Type),
		int64(t.StxAmount),
		int64(t.TokenAmount),
		int64(t.PriceAtTrade),
		int64(t.PlatformFee),
		int64(t.CreatorFee),
		t.BlockHeight,
		t.ObservedAt,
	}
}

// Insert adds a trade. Returns ErrDuplicateKey if the tx id was already recorded.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.TxID == "" || t.Token == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeSQL, tradeInsertArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecordTrade inserts the trade and applies the curve update in one
// database transaction. A failure at any point rolls back both writes,
// so a trade row can never be stranded without its curve state.
func (s *TradeStore) RecordTrade(ctx context.Context, t *domain.Trade, expectedTokensSold uint64, next domain.CurveState) error {
	if t == nil || t.TxID == "" || t.Token == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin record trade: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertTradeSQL, tradeInsertArgs(t)...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert trade: %w", err)
	}

	tag, err := tx.Exec(ctx, applyCurveStateSQL,
		t.Token,
		int64(next.TokensSold),
		int64(next.Reserve),
		int64(next.CurrentPrice),
		int64(next.MarketCap),
		int64(expectedTokensSold),
	)
	if err != nil {
		return fmt.Errorf("apply curve state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var found bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tokens WHERE contract_address = $1)`, t.Token,
		).Scan(&found)
		if err != nil {
			return fmt.Errorf("check token exists: %w", err)
		}
		if !found {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit record trade: %w", err)
	}
	return nil
}

const tradeColumns = `tx_id, token_contract, trader, trade_type,
	stx_amount, token_amount, price_at_trade, platform_fee, creator_fee,
	block_height, observed_at`

// GetByTxID retrieves a trade by tx id. Returns ErrNotFound if absent.
func (s *TradeStore) GetByTxID(ctx context.Context, txID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE tx_id = $1`

	t, err := scanTrade(s.pool.QueryRow(ctx, query, txID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by tx id: %w", err)
	}
	return t, nil
}

// ListByToken retrieves trades for a token, newest first.
func (s *TradeStore) ListByToken(ctx context.Context, contract string, limit int) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE token_contract = $1 ORDER BY observed_at DESC, tx_id ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.pool.Query(ctx, query, contract)
	if err != nil {
		return nil, fmt.Errorf("list trades by token: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// Leaderboard aggregates traders by total volume, highest first.
func (s *TradeStore) Leaderboard(ctx context.Context, limit int) ([]*domain.LeaderboardEntry, error) {
	query := `
		SELECT trader, COUNT(*), COALESCE(SUM(stx_amount), 0)
		FROM trades
		GROUP BY trader
		ORDER BY 3 DESC, trader ASC
	`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		var volume int64
		if err := rows.Scan(&e.Address, &e.TotalTrades, &volume); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.TotalVolumeStx = uint64(volume)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}
	return entries, nil
}

// scanTrade scans one row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var tradeType string
	var stxAmount, tokenAmount, priceAtTrade, platformFee, creatorFee int64

	err := row.Scan(
		&t.TxID,
		&t.Token,
		&t.Trader,
		&tradeType,
		&stxAmount,
		&tokenAmount,
		&priceAtTrade,
		&platformFee,
		&creatorFee,
		&t.BlockHeight,
		&t.ObservedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Type = domain.TradeType(tradeType)
	t.StxAmount = uint64(stxAmount)
	t.TokenAmount = uint64(tokenAmount)
	t.PriceAtTrade = uint64(priceAtTrade)
	t.PlatformFee = uint64(platformFee)
	t.CreatorFee = uint64(creatorFee)
	return &t, nil
}
