package verification

import (
	"context"
	"sync"
	"time"

	"courierd/internal/types"
)

type codeKey struct {
	orderID types.ID
	phase   Phase
}

// MemoryStore is the in-process Store used by tests and single-node runs.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[codeKey]*Code
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[codeKey]*Code)}
}

func (s *MemoryStore) Get(_ context.Context, orderID types.ID, phase Phase) (*Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[codeKey{orderID, phase}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, c *Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.codes[codeKey{c.OrderID, c.Phase}] = &cp
	return nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, orderID types.ID, phase Phase, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[codeKey{orderID, phase}]
	if !ok {
		return false, ErrNotFound
	}
	if c.VerifiedAt != nil {
		return false, nil
	}
	c.VerifiedAt = &at
	return true, nil
}
