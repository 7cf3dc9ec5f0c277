package dispatch

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierd/internal/types"
)

// PostgresQuickStore persists quick deliveries. The claim is a conditional
// UPDATE so the database arbitrates racing couriers.
type PostgresQuickStore struct {
	db *pgxpool.Pool
}

func NewPostgresQuickStore(db *pgxpool.Pool) *PostgresQuickStore {
	return &PostgresQuickStore{db: db}
}

const quickColumns = `
    id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
    payout_amount, payout_currency, courier_id, created_at, claimed_at`

func (s *PostgresQuickStore) Create(ctx context.Context, q *QuickDelivery) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO quick_deliveries (
            id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
            payout_amount, payout_currency, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		string(q.ID),
		q.Pickup.Lat, q.Pickup.Lng, q.Dropoff.Lat, q.Dropoff.Lng,
		q.Payout.Amount, q.Payout.Currency, q.CreatedAt,
	)
	return err
}

func (s *PostgresQuickStore) Get(ctx context.Context, id types.ID) (*QuickDelivery, error) {
	row := s.db.QueryRow(ctx, `SELECT `+quickColumns+` FROM quick_deliveries WHERE id = $1`, string(id))
	q, err := scanQuick(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

func (s *PostgresQuickStore) Open(ctx context.Context) ([]QuickDelivery, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+quickColumns+`
        FROM quick_deliveries
        WHERE courier_id IS NULL
        ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QuickDelivery
	for rows.Next() {
		q, err := scanQuick(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (s *PostgresQuickStore) Claim(ctx context.Context, id, courierID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE quick_deliveries
        SET courier_id = $1, claimed_at = NOW()
        WHERE id = $2 AND courier_id IS NULL`,
		string(courierID), string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanQuick(row pgx.Row) (*QuickDelivery, error) {
	var q QuickDelivery
	var courierID *string
	err := row.Scan(
		&q.ID,
		&q.Pickup.Lat, &q.Pickup.Lng, &q.Dropoff.Lat, &q.Dropoff.Lng,
		&q.Payout.Amount, &q.Payout.Currency,
		&courierID, &q.CreatedAt, &q.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}
	if courierID != nil {
		id := types.ID(*courierID)
		q.CourierID = &id
	}
	return &q, nil
}
