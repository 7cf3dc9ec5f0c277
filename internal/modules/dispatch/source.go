package dispatch

import (
	"context"
	"sync"

	"courierd/internal/modules/order"
	"courierd/internal/types"
)

// Source is one independent feed of open jobs. Sources come and go at
// runtime: a business toggling courier delivery off removes its source on
// the next cycle without touching already-accepted jobs.
type Source interface {
	ID() string
	Open(ctx context.Context) ([]Job, error)
}

// OrderGateway is the slice of the order lifecycle dispatch needs.
type OrderGateway interface {
	OpenJobs(ctx context.Context, businessID types.ID) ([]order.Order, error)
	AssignCourier(ctx context.Context, cmd order.AssignCommand) error
}

// businessSource exposes one business's ready, unassigned delivery orders.
type businessSource struct {
	businessID types.ID
	orders     OrderGateway
}

func NewBusinessSource(businessID types.ID, orders OrderGateway) Source {
	return &businessSource{businessID: businessID, orders: orders}
}

func (s *businessSource) ID() string {
	return "business:" + string(s.businessID)
}

func (s *businessSource) Open(ctx context.Context) ([]Job, error) {
	open, err := s.orders.OpenJobs(ctx, s.businessID)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(open))
	for _, o := range open {
		bizID := o.BusinessID
		posted := o.CreatedAt
		if o.ReadyAt != nil {
			posted = *o.ReadyAt
		}
		jobs = append(jobs, Job{
			ID:         o.ID,
			Source:     SourceBusiness,
			BusinessID: &bizID,
			Pickup:     o.Pickup,
			Dropoff:    o.Dropoff,
			Payout:     o.Payout,
			PostedAt:   posted,
		})
	}
	return jobs, nil
}

// QuickStore persists quick deliveries. Claim is the compare-and-set that
// makes acceptance exclusive.
type QuickStore interface {
	Create(ctx context.Context, q *QuickDelivery) error
	Get(ctx context.Context, id types.ID) (*QuickDelivery, error)
	Open(ctx context.Context) ([]QuickDelivery, error)
	Claim(ctx context.Context, id, courierID types.ID) (bool, error)
}

// quickSource exposes the global unclaimed quick deliveries.
type quickSource struct {
	store QuickStore
}

func NewQuickSource(store QuickStore) Source {
	return &quickSource{store: store}
}

func (s *quickSource) ID() string { return "quick" }

func (s *quickSource) Open(ctx context.Context) ([]Job, error) {
	open, err := s.store.Open(ctx)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(open))
	for _, q := range open {
		jobs = append(jobs, Job{
			ID:       q.ID,
			Source:   SourceQuick,
			Pickup:   q.Pickup,
			Dropoff:  q.Dropoff,
			Payout:   q.Payout,
			PostedAt: q.CreatedAt,
		})
	}
	return jobs, nil
}

// MemoryQuickStore is the in-process QuickStore for tests and single-node runs.
type MemoryQuickStore struct {
	mu      sync.Mutex
	records map[types.ID]*QuickDelivery
}

func NewMemoryQuickStore() *MemoryQuickStore {
	return &MemoryQuickStore{records: make(map[types.ID]*QuickDelivery)}
}

func (s *MemoryQuickStore) Create(_ context.Context, q *QuickDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.records[q.ID] = &cp
	return nil
}

func (s *MemoryQuickStore) Get(_ context.Context, id types.ID) (*QuickDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *MemoryQuickStore) Open(_ context.Context) ([]QuickDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []QuickDelivery
	for _, q := range s.records {
		if q.CourierID == nil {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (s *MemoryQuickStore) Claim(_ context.Context, id, courierID types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if q.CourierID != nil {
		return false, nil
	}
	cid := courierID
	now := nowFunc()
	q.CourierID = &cid
	q.ClaimedAt = &now
	return true, nil
}
