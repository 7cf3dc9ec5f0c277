// Package tracking turns a courier's raw location stream into the customer
// view of a delivery: where the courier is, how far out, the ETA, and
// one-time proximity alerts as they close in.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"courierd/internal/geo"
	"courierd/internal/modules/location"
	"courierd/internal/modules/order"
	"courierd/internal/types"
)

var (
	ErrNoCourier  = errors.New("order has no courier assigned")
	ErrNoLocation = errors.New("no location for courier")
	ErrNotActive  = errors.New("delivery not in progress")
)

// Target is the leg the courier is currently driving.
type Target string

const (
	TargetPickup  Target = "pickup"
	TargetDropoff Target = "dropoff"
)

// Update is one tracking tick as shown to the customer.
type Update struct {
	OrderID        types.ID
	CourierID      types.ID
	Position       types.Point
	HeadingDegrees *float64
	Target         Target
	TargetPoint    types.Point
	DistanceMiles  float64
	// ETAMinutes is nil when the courier's fix is stale; better no number
	// than a confidently wrong one.
	ETAMinutes *float64
	// Alerts lists proximity bands, in miles, crossed for the first time on
	// this tick. Each band fires at most once per leg.
	Alerts     []float64
	RecordedAt time.Time
}

// OrderReader is the slice of the order lifecycle tracking needs.
type OrderReader interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

type Service struct {
	locations *location.Service
	orders    OrderReader
	estimator *Estimator
	log       *slog.Logger
}

func NewService(locations *location.Service, orders OrderReader, estimator *Estimator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{locations: locations, orders: orders, estimator: estimator, log: log}
}

// targetFor picks the current leg: pickup until the pickup handoff is
// verified, dropoff afterwards.
func targetFor(o *order.Order) (Target, types.Point) {
	if o.PickupVerifiedAt == nil {
		return TargetPickup, o.Pickup
	}
	return TargetDropoff, o.Dropoff
}

// Snapshot computes the current tracking state from the courier's last-known
// sample. Proximity alerts only fire on the live stream, never here.
func (s *Service) Snapshot(ctx context.Context, orderID types.ID) (*Update, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CourierID == nil {
		return nil, ErrNoCourier
	}
	sample, ok := s.locations.Latest(*o.CourierID)
	if !ok {
		return nil, ErrNoLocation
	}
	u := s.build(ctx, o, sample, nil)
	return &u, nil
}

// Follow streams tracking updates for an in-flight delivery until the order
// reaches a terminal status, loses its courier, or ctx ends. The returned
// stop func releases the underlying location subscription.
func (s *Service) Follow(ctx context.Context, orderID types.ID) (<-chan Update, func(), error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.Terminal() {
		return nil, nil, ErrNotActive
	}
	if o.CourierID == nil {
		return nil, nil, ErrNoCourier
	}

	samples, stop := s.locations.Subscribe(ctx, *o.CourierID)
	out := make(chan Update, 1)
	go func() {
		defer close(out)
		fired := map[Target]map[float64]bool{
			TargetPickup:  {},
			TargetDropoff: {},
		}
		for sample := range samples {
			o, err := s.orders.Get(ctx, orderID)
			if err != nil {
				s.log.Warn("tracking lost order", "order_id", orderID, "err", err)
				return
			}
			if o.Terminal() || o.CourierID == nil {
				return
			}
			target, _ := targetFor(o)
			u := s.build(ctx, o, sample, fired[target])
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, stop, nil
}

// build assembles one Update. fired records bands already alerted for the
// current leg; nil suppresses alerts entirely.
func (s *Service) build(ctx context.Context, o *order.Order, sample location.Sample, fired map[float64]bool) Update {
	target, point := targetFor(o)
	d := geo.DistanceMiles(sample.Position, point)
	u := Update{
		OrderID:        o.ID,
		CourierID:      *o.CourierID,
		Position:       sample.Position,
		HeadingDegrees: sample.HeadingDegrees,
		Target:         target,
		TargetPoint:    point,
		DistanceMiles:  d,
		RecordedAt:     sample.RecordedAt,
	}
	if sample.FreshAt(time.Now(), s.locations.StaleAfter()) {
		eta := s.estimator.Minutes(ctx, sample, point)
		u.ETAMinutes = &eta
	}
	if fired != nil {
		for _, band := range geo.BandsCrossed(d) {
			if !fired[band] {
				fired[band] = true
				u.Alerts = append(u.Alerts, band)
			}
		}
	}
	return u
}
