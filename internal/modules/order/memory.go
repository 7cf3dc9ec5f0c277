package order

import (
	"context"
	"sync"
	"time"

	"courierd/internal/types"
)

// MemoryStore is the in-process Store used by tests and single-node runs.
// Every conditional update runs under one lock, which gives the same
// atomicity the Postgres store gets from conditional UPDATEs.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[types.ID]*Order
	events []Event
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[types.ID]*Order)}
}

func (s *MemoryStore) Create(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.Status != from || o.StatusVersion != version {
		return false, nil
	}
	o.Status = to
	o.StatusVersion++
	stampStatus(o, to, time.Now())
	if to == StatusCancelled && reason != nil {
		r := *reason
		o.CancelReason = &r
	}
	return true, nil
}

func (s *MemoryStore) AssignCourier(_ context.Context, id types.ID, courierID types.ID, kind CourierKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.Status != StatusReady || o.CourierID != nil {
		return false, nil
	}
	cid := courierID
	k := kind
	now := time.Now()
	o.CourierID = &cid
	o.CourierKind = &k
	o.Status = StatusEnRoutePickup
	o.StatusVersion++
	o.AcceptedAt = &now
	return true, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, id types.ID, phase string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	switch phase {
	case "pickup":
		if o.PickupVerifiedAt != nil {
			return false, nil
		}
		o.PickupVerifiedAt = &at
	case "dropoff":
		if o.DropoffVerifiedAt != nil {
			return false, nil
		}
		o.DropoffVerifiedAt = &at
	default:
		return false, ErrBadRequest
	}
	return true, nil
}

func (s *MemoryStore) SetPaymentStatus(_ context.Context, id types.ID, status PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = status
	return nil
}

func (s *MemoryStore) SetEscalated(_ context.Context, id types.ID, escalated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Escalated = escalated
	return nil
}

func (s *MemoryStore) OpenJobs(_ context.Context, businessID types.ID) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.BusinessID == businessID && o.AwaitingCourier() {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListUndelivered(_ context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.Status == StatusCancelled {
			continue
		}
		if o.Status == StatusDelivered && o.DropoffVerifiedAt != nil {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *e
	cp.ID = s.nextID
	s.events = append(s.events, cp)
	return nil
}

func (s *MemoryStore) Events(_ context.Context, orderID types.ID) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

// stampStatus records the transition timestamp for statuses that carry one.
func stampStatus(o *Order, to Status, now time.Time) {
	switch to {
	case StatusReady:
		o.ReadyAt = &now
	case StatusOutForDelivery:
		o.PickedUpAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
}
