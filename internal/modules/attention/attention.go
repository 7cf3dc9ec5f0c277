// Package attention scans undelivered orders for states a human should look
// at: stuck deliveries, payment trouble, and internal inconsistencies that
// the state machine should have made impossible.
package attention

import (
	"context"
	"log/slog"
	"time"

	"courierd/internal/modules/order"
)

// Reason is one human-readable ground for flagging an order.
type Reason string

const (
	ReasonPaymentFailed     Reason = "payment_failed"
	ReasonUnverifiedPickup  Reason = "out_for_delivery_without_pickup_verification"
	ReasonUnverifiedDropoff Reason = "delivered_without_dropoff_verification"
	ReasonMissingCourier    Reason = "courier_status_without_courier"
	ReasonReadyTooLong      Reason = "ready_awaiting_courier_too_long"
	ReasonEscalated         Reason = "escalated_by_support"
)

// DefaultReadyAfter is how long an order may sit ready and unclaimed before
// it needs eyes.
const DefaultReadyAfter = 15 * time.Minute

type Config struct {
	// ReadyAfter is the ready-and-unclaimed window before flagging.
	ReadyAfter time.Duration
}

func (c Config) readyAfter() time.Duration {
	if c.ReadyAfter <= 0 {
		return DefaultReadyAfter
	}
	return c.ReadyAfter
}

// courierHeld are the statuses that imply an assigned courier.
var courierHeld = map[order.Status]bool{
	order.StatusEnRoutePickup:  true,
	order.StatusOutForDelivery: true,
	order.StatusDelivered:      true,
}

// Evaluate reports whether the order needs attention and every reason why.
// It is total: any order in any state evaluates without error, including
// states the lifecycle can never legally produce.
func Evaluate(o order.Order, now time.Time, cfg Config) (bool, []Reason) {
	var reasons []Reason

	if o.PaymentStatus == order.PaymentFailed && o.Status != order.StatusCancelled {
		reasons = append(reasons, ReasonPaymentFailed)
	}
	if o.Status == order.StatusOutForDelivery && o.PickupVerifiedAt == nil {
		reasons = append(reasons, ReasonUnverifiedPickup)
	}
	if o.Status == order.StatusDelivered && o.DropoffVerifiedAt == nil {
		reasons = append(reasons, ReasonUnverifiedDropoff)
	}
	if courierHeld[o.Status] && o.CourierID == nil {
		reasons = append(reasons, ReasonMissingCourier)
	}
	if o.Status == order.StatusReady && o.CourierID == nil && o.CourierEligible {
		since := o.CreatedAt
		if o.ReadyAt != nil {
			since = *o.ReadyAt
		}
		if now.Sub(since) > cfg.readyAfter() {
			reasons = append(reasons, ReasonReadyTooLong)
		}
	}
	if o.Escalated {
		reasons = append(reasons, ReasonEscalated)
	}

	return len(reasons) > 0, reasons
}

// Flagged pairs an order with why it was flagged.
type Flagged struct {
	Order   order.Order
	Reasons []Reason
}

// Lister is the slice of the order lifecycle the monitor reads.
type Lister interface {
	ListUndelivered(ctx context.Context) ([]order.Order, error)
}

// Monitor runs the attention scan over live orders.
type Monitor struct {
	orders Lister
	cfg    Config
	log    *slog.Logger
}

func NewMonitor(orders Lister, cfg Config, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{orders: orders, cfg: cfg, log: log}
}

// Scan evaluates every undelivered order and returns the flagged ones.
func (m *Monitor) Scan(ctx context.Context) ([]Flagged, error) {
	open, err := m.orders.ListUndelivered(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []Flagged
	for _, o := range open {
		if needs, reasons := Evaluate(o, now, m.cfg); needs {
			out = append(out, Flagged{Order: o, Reasons: reasons})
		}
	}
	if len(out) > 0 {
		m.log.Info("attention scan flagged orders", "count", len(out))
	}
	return out, nil
}
