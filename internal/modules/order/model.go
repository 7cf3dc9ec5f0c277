// Package order drives an order through the delivery lifecycle state machine.
package order

import (
	"time"

	"courierd/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusEnRoutePickup  Status = "driver_en_route_pickup"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

type OrderType string

const (
	TypeDelivery OrderType = "delivery"
	TypePickup   OrderType = "pickup"
	TypeDineIn   OrderType = "dine_in"
	TypeTakeout  OrderType = "takeout"
)

// CourierKind distinguishes a business's own driver from a marketplace courier.
type CourierKind string

const (
	KindInHouse     CourierKind = "in_house"
	KindMarketplace CourierKind = "marketplace"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Role is the authority a caller acts under when mutating an order.
type Role string

const (
	RoleKitchen Role = "kitchen"
	RoleCourier Role = "courier"
	RoleSystem  Role = "system"
)

// Actor identifies who requested a transition.
type Actor struct {
	Role Role
	ID   types.ID
}

type Order struct {
	ID            types.ID
	BusinessID    types.ID
	Type          OrderType
	Status        Status
	StatusVersion int

	// CourierID is set exactly once per active delivery cycle; non-nil iff
	// the order is (or historically was) in a courier-held status.
	CourierID   *types.ID
	CourierKind *CourierKind

	Pickup  types.Point
	Dropoff types.Point
	Payout  types.Money

	PaymentStatus PaymentStatus
	Escalated     bool
	// CourierEligible is false for businesses that disabled courier delivery.
	CourierEligible bool

	CreatedAt         time.Time
	ReadyAt           *time.Time
	AcceptedAt        *time.Time
	PickedUpAt        *time.Time
	DeliveredAt       *time.Time
	CancelledAt       *time.Time
	CancelReason      *string
	PickupVerifiedAt  *time.Time
	DropoffVerifiedAt *time.Time
}

// Terminal reports whether the order can make no further transitions.
func (o *Order) Terminal() bool {
	return o.Status == StatusDelivered || o.Status == StatusCancelled
}

// AwaitingCourier reports whether the order is an open job for dispatch.
func (o *Order) AwaitingCourier() bool {
	return o.Type == TypeDelivery &&
		o.CourierEligible &&
		o.Status == StatusReady &&
		o.CourierID == nil
}

// Event is one entry in the order's transition log.
type Event struct {
	ID      int64
	OrderID types.ID
	From    Status
	To      Status
	Actor   Role
	ActorID *types.ID
	At      time.Time
}

// forwardChain is the single defined "next" path for an order.
var forwardChain = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusEnRoutePickup,
	StatusOutForDelivery,
	StatusDelivered,
}

// NextStatus returns the next forward status, if any.
func NextStatus(s Status) (Status, bool) {
	for i, st := range forwardChain {
		if st == s && i+1 < len(forwardChain) {
			return forwardChain[i+1], true
		}
	}
	return "", false
}

// CanTransition reports whether from→to is a defined edge: one forward step,
// or cancellation from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from == StatusDelivered || from == StatusCancelled {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	next, ok := NextStatus(from)
	return ok && next == to
}

// kitchenEdges are the forward edges kitchen staff may drive. The courier
// leg (ready onward) belongs to the assigned courier alone.
var kitchenEdges = map[Status]Status{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusPreparing,
	StatusPreparing: StatusReady,
}

// authorized reports whether the actor may drive the from→to edge.
func authorized(o *Order, from, to Status, actor Actor) bool {
	if to == StatusCancelled {
		// Any role may cancel; payment-failure cancels arrive as RoleSystem.
		return true
	}
	switch actor.Role {
	case RoleKitchen:
		return kitchenEdges[from] == to
	case RoleCourier:
		return o.CourierID != nil && *o.CourierID == actor.ID
	case RoleSystem:
		return true
	}
	return false
}
