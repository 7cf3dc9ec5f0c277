package verification

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierd/internal/types"
)

// PostgresStore persists handoff codes. One row per (order, phase); issuing
// over an unverified code overwrites it in place.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, orderID types.ID, phase Phase) (*Code, error) {
	row := s.db.QueryRow(ctx, `
        SELECT order_id, phase, code, issued_at, verified_at
        FROM handoff_codes
        WHERE order_id = $1 AND phase = $2`,
		string(orderID), string(phase),
	)
	var c Code
	err := row.Scan(&c.OrderID, &c.Phase, &c.Code, &c.IssuedAt, &c.VerifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) Put(ctx context.Context, c *Code) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO handoff_codes (order_id, phase, code, issued_at, verified_at)
        VALUES ($1, $2, $3, $4, NULL)
        ON CONFLICT (order_id, phase)
        DO UPDATE SET code = $3, issued_at = $4
        WHERE handoff_codes.verified_at IS NULL`,
		string(c.OrderID), string(c.Phase), c.Code, c.IssuedAt,
	)
	return err
}

func (s *PostgresStore) MarkVerified(ctx context.Context, orderID types.ID, phase Phase, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE handoff_codes
        SET verified_at = $3
        WHERE order_id = $1 AND phase = $2 AND verified_at IS NULL`,
		string(orderID), string(phase), at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
