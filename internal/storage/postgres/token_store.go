package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if the symbol or contract exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	if t == nil || t.Contract == "" || t.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			contract_address, name, symbol, creator, image_uri, description,
			tokens_sold, stx_reserve, current_price, market_cap,
			is_graduated, graduated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Contract,
		t.Name,
		t.Symbol,
		t.Creator,
		t.ImageURI,
		t.Description,
		int64(t.TokensSold),
		int64(t.Reserve),
		int64(t.CurrentPrice),
		int64(t.MarketCap),
		t.IsGraduated,
		t.GraduatedAt,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

const tokenColumns = `contract_address, name, symbol, creator, image_uri, description,
	tokens_sold, stx_reserve, current_price, market_cap,
	is_graduated, graduated_at, created_at, updated_at`

// GetBySymbol retrieves a token by symbol. Returns ErrNotFound if absent.
func (s *TokenStore) GetBySymbol(ctx context.Context, symbol string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE symbol = $1`
	return s.getOne(ctx, query, symbol)
}

// GetByContract retrieves a token by contract address. Returns ErrNotFound if absent.
func (s *TokenStore) GetByContract(ctx context.Context, contract string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE contract_address = $1`
	return s.getOne(ctx, query, contract)
}

func (s *TokenStore) getOne(ctx context.Context, query string, arg any) (*domain.Token, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// List retrieves tokens per the given options.
func (s *TokenStore) List(ctx context.Context, opts storage.ListTokensOptions) ([]*domain.Token, error) {
	orderCol := "created_at"
	if opts.Order == storage.TokenOrderMarketCap {
		orderCol = "market_cap"
	}
	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}

	query := `SELECT ` + tokenColumns + ` FROM tokens`
	var args []any
	if opts.Graduated != nil {
		query += ` WHERE is_graduated = $1`
		args = append(args, *opts.Graduated)
	}
	query += fmt.Sprintf(` ORDER BY %s %s, contract_address ASC`, orderCol, direction)
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// applyCurveStateSQL only matches while tokens_sold equals the caller's
// expectation and the token has not graduated; zero rows means a
// concurrent writer won. Shared with TradeStore.RecordTrade.
const applyCurveStateSQL = `
	UPDATE tokens
	SET tokens_sold = $2, stx_reserve = $3, current_price = $4, market_cap = $5, updated_at = now()
	WHERE contract_address = $1 AND tokens_sold = $6 AND is_graduated = FALSE
`

// ApplyCurveState conditionally replaces the token's curve state.
func (s *TokenStore) ApplyCurveState(ctx context.Context, contract string, expectedTokensSold uint64, next domain.CurveState) error {
	tag, err := s.pool.Exec(ctx, applyCurveStateSQL,
		contract,
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
		exists, err := s.exists(ctx, contract)
		if err != nil {
			return err
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}
	return nil
}

// MarkGraduated sets is_graduated once. Returns false if already graduated.
func (s *TokenStore) MarkGraduated(ctx context.Context, contract string, at time.Time) (bool, error) {
	query := `
		UPDATE tokens
		SET is_graduated = TRUE, graduated_at = $2, updated_at = now()
		WHERE contract_address = $1 AND is_graduated = FALSE
	`

	tag, err := s.pool.Exec(ctx, query, contract, at)
	if err != nil {
		return false, fmt.Errorf("mark graduated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.exists(ctx, contract)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, storage.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *TokenStore) exists(ctx context.Context, contract string) (bool, error) {
	var found bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tokens WHERE contract_address = $1)`, contract,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("check token exists: %w", err)
	}
	return found, nil
}

// scanToken scans one row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	var tokensSold, reserve, currentPrice, marketCap int64

	err := row.Scan(
		&t.Contract,
		&t.Name,
		&t.Symbol,
		&t.Creator,
		&t.ImageURI,
		&t.Description,
		&tokensSold,
		&reserve,
		&currentPrice,
		&marketCap,
		&t.IsGraduated,
		&t.GraduatedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.TokensSold = uint64(tokensSold)
	t.Reserve = uint64(reserve)
	t.CurrentPrice = uint64(currentPrice)
	t.MarketCap = uint64(marketCap)
	return &t, nil
}
