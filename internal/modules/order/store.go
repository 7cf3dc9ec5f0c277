package order

import (
	"context"
	"time"

	"courierd/internal/types"
)

// Store persists orders. Every conditional update is a compare-and-set
// against (status, status_version) so no two transitions for the same order
// can both apply.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)

	// UpdateStatus applies from→to iff the stored row still matches
	// (from, version). Returns false when the CAS loses.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error)

	// AssignCourier atomically claims the order for a courier: it succeeds
	// iff status is still `ready` and no courier is assigned, moving the
	// order to driver_en_route_pickup in the same operation.
	AssignCourier(ctx context.Context, id types.ID, courierID types.ID, kind CourierKind) (bool, error)

	// MarkVerified stamps the phase's verification time once.
	MarkVerified(ctx context.Context, id types.ID, phase string, at time.Time) (bool, error)

	SetPaymentStatus(ctx context.Context, id types.ID, status PaymentStatus) error
	SetEscalated(ctx context.Context, id types.ID, escalated bool) error

	// OpenJobs lists orders awaiting a courier for one business.
	OpenJobs(ctx context.Context, businessID types.ID) ([]Order, error)
	// ListUndelivered lists all non-terminal orders, plus delivered orders
	// whose dropoff was never verified, for attention scans.
	ListUndelivered(ctx context.Context) ([]Order, error)

	AppendEvent(ctx context.Context, e *Event) error
	Events(ctx context.Context, orderID types.ID) ([]Event, error)
}
