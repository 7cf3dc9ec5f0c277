package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierd/internal/types"
)

// PostgresStore persists orders. Conditional updates lean on single-statement
// UPDATE ... WHERE guards so the database arbitrates every race.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `
    id, business_id, order_type, status, status_version,
    courier_id, courier_kind,
    pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
    payout_amount, payout_currency,
    payment_status, escalated, courier_eligible,
    created_at, ready_at, accepted_at, picked_up_at, delivered_at,
    cancelled_at, cancel_reason, pickup_verified_at, dropoff_verified_at`

func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO orders (
            id, business_id, order_type, status, status_version,
            pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
            payout_amount, payout_currency,
            payment_status, escalated, courier_eligible, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		string(o.ID), string(o.BusinessID), string(o.Type), string(o.Status), o.StatusVersion,
		o.Pickup.Lat, o.Pickup.Lng, o.Dropoff.Lat, o.Dropoff.Lng,
		o.Payout.Amount, o.Payout.Currency,
		string(o.PaymentStatus), o.Escalated, o.CourierEligible, o.CreatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            status_version = status_version + 1,
            ready_at = CASE WHEN $1 = 'ready' THEN NOW() ELSE ready_at END,
            picked_up_at = CASE WHEN $1 = 'out_for_delivery' THEN NOW() ELSE picked_up_at END,
            delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
            cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END,
            cancel_reason = COALESCE($2, cancel_reason)
        WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), reason, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AssignCourier(ctx context.Context, id types.ID, courierID types.ID, kind CourierKind) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET courier_id = $1,
            courier_kind = $2,
            status = 'driver_en_route_pickup',
            status_version = status_version + 1,
            accepted_at = NOW()
        WHERE id = $3 AND status = 'ready' AND courier_id IS NULL`,
		string(courierID), string(kind), string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, id types.ID, phase string, at time.Time) (bool, error) {
	var tagQuery string
	switch phase {
	case "pickup":
		tagQuery = `UPDATE orders SET pickup_verified_at = $1 WHERE id = $2 AND pickup_verified_at IS NULL`
	case "dropoff":
		tagQuery = `UPDATE orders SET dropoff_verified_at = $1 WHERE id = $2 AND dropoff_verified_at IS NULL`
	default:
		return false, ErrBadRequest
	}
	tag, err := s.db.Exec(ctx, tagQuery, at, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetPaymentStatus(ctx context.Context, id types.ID, status PaymentStatus) error {
	_, err := s.db.Exec(ctx,
		`UPDATE orders SET payment_status = $1 WHERE id = $2`,
		string(status), string(id))
	return err
}

func (s *PostgresStore) SetEscalated(ctx context.Context, id types.ID, escalated bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE orders SET escalated = $1 WHERE id = $2`,
		escalated, string(id))
	return err
}

func (s *PostgresStore) OpenJobs(ctx context.Context, businessID types.ID) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+orderColumns+`
        FROM orders
        WHERE business_id = $1
          AND order_type = 'delivery'
          AND status = 'ready'
          AND courier_id IS NULL
          AND courier_eligible
        ORDER BY ready_at`,
		string(businessID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *PostgresStore) ListUndelivered(ctx context.Context) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+orderColumns+`
        FROM orders
        WHERE status NOT IN ('cancelled')
          AND NOT (status = 'delivered' AND dropoff_verified_at IS NOT NULL)
        ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *PostgresStore) AppendEvent(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO order_state_events (order_id, from_status, to_status, actor_role, actor_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID), string(e.From), string(e.To), string(e.Actor), actorID, e.At,
	)
	return err
}

func (s *PostgresStore) Events(ctx context.Context, orderID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, from_status, to_status, actor_role, actor_id, created_at
        FROM order_state_events
        WHERE order_id = $1
        ORDER BY id`,
		string(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actorID *string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.Actor, &actorID, &e.At); err != nil {
			return nil, err
		}
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var courierID, courierKind, cancelReason *string
	err := row.Scan(
		&o.ID, &o.BusinessID, &o.Type, &o.Status, &o.StatusVersion,
		&courierID, &courierKind,
		&o.Pickup.Lat, &o.Pickup.Lng, &o.Dropoff.Lat, &o.Dropoff.Lng,
		&o.Payout.Amount, &o.Payout.Currency,
		&o.PaymentStatus, &o.Escalated, &o.CourierEligible,
		&o.CreatedAt, &o.ReadyAt, &o.AcceptedAt, &o.PickedUpAt, &o.DeliveredAt,
		&o.CancelledAt, &cancelReason, &o.PickupVerifiedAt, &o.DropoffVerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if courierID != nil {
		id := types.ID(*courierID)
		o.CourierID = &id
	}
	if courierKind != nil {
		k := CourierKind(*courierKind)
		o.CourierKind = &k
	}
	o.CancelReason = cancelReason
	return &o, nil
}
