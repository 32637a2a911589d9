package postgres

import (
	"context"
	"fmt"

	"stackspad/internal/domain"
	"stackspad/internal/storage"
)

// ActivityStore implements storage.ActivityStore using PostgreSQL.
type ActivityStore struct {
	pool *Pool
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(pool *Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

// Insert adds an activity entry.
func (s *ActivityStore) Insert(ctx context.Context, a *domain.Activity) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO activity (id, event_type, tx_id, address, token_contract, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		string(a.EventType),
		a.TxID,
		a.Address,
		a.Token,
		a.Details,
		a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// List retrieves entries per the given options, newest first.
func (s *ActivityStore) List(ctx context.Context, opts storage.ListActivityOptions) ([]*domain.Activity, error) {
	query := `SELECT id, event_type, tx_id, address, token_contract, details, created_at FROM activity`
	var args []any
	if opts.EventType != "" {
		query += ` WHERE event_type = $1`
		args = append(args, string(opts.EventType))
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []*domain.Activity
	for rows.Next() {
		var a domain.Activity
		var eventType string
		if err := rows.Scan(&a.ID, &eventType, &a.TxID, &a.Address, &a.Token, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		a.EventType = domain.ActivityType(eventType)
		entries = append(entries, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}
	return entries, nil
}
