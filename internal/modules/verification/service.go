package verification

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"courierd/internal/types"
)

// codeDigits is the length of a handoff code. Short enough to read over a
// doorstep exchange, long enough that guessing beats nobody.
const codeDigits = 5

var (
	ErrNotFound        = errors.New("no code issued")
	ErrCodeMismatch    = errors.New("code mismatch")
	ErrAlreadyVerified = errors.New("already verified")
	ErrBadRequest      = errors.New("bad request")
)

// Store persists codes keyed by (orderID, phase).
type Store interface {
	Get(ctx context.Context, orderID types.ID, phase Phase) (*Code, error)
	Put(ctx context.Context, c *Code) error
	MarkVerified(ctx context.Context, orderID types.ID, phase Phase, at time.Time) (bool, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Issue generates a fresh code for (orderID, phase), replacing any prior
// unverified code. Re-issuing over a verified phase is refused; the handoff
// already happened.
func (s *Service) Issue(ctx context.Context, orderID types.ID, phase Phase) (string, error) {
	if orderID == "" || !phase.Valid() {
		return "", ErrBadRequest
	}
	existing, err := s.store.Get(ctx, orderID, phase)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if existing != nil && existing.VerifiedAt != nil {
		return "", ErrAlreadyVerified
	}
	code := &Code{
		OrderID:  orderID,
		Phase:    phase,
		Code:     randomCode(),
		IssuedAt: time.Now(),
	}
	if err := s.store.Put(ctx, code); err != nil {
		return "", err
	}
	return code.Code, nil
}

// Verify checks a supplied code and stamps VerifiedAt exactly once.
// A repeat call after success returns ErrAlreadyVerified, which callers
// should treat as success, not retry.
func (s *Service) Verify(ctx context.Context, orderID types.ID, phase Phase, supplied string) error {
	if orderID == "" || !phase.Valid() {
		return ErrBadRequest
	}
	c, err := s.store.Get(ctx, orderID, phase)
	if err != nil {
		return err
	}
	if c.VerifiedAt != nil {
		return ErrAlreadyVerified
	}
	if c.Code != supplied {
		return ErrCodeMismatch
	}
	applied, err := s.store.MarkVerified(ctx, orderID, phase, time.Now())
	if err != nil {
		return err
	}
	if !applied {
		// Lost a race with another verify of the same code.
		return ErrAlreadyVerified
	}
	return nil
}

// Verified reports whether the phase has been verified for the order.
func (s *Service) Verified(ctx context.Context, orderID types.ID, phase Phase) (bool, error) {
	c, err := s.store.Get(ctx, orderID, phase)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.VerifiedAt != nil, nil
}

// randomCode draws a fixed-length digit string from crypto/rand so codes are
// not derivable from order IDs.
func randomCode() string {
	span := uint64(1)
	for i := 0; i < codeDigits; i++ {
		span *= 10
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	n := binary.BigEndian.Uint64(b[:]) % span
	return fmt.Sprintf("%0*d", codeDigits, n)
}
