// Package verification issues and checks the one-time codes that prove
// physical handoff at pickup and dropoff.
package verification

import (
	"time"

	"courierd/internal/types"
)

// Phase names the handoff a code protects.
type Phase string

const (
	PhasePickup  Phase = "pickup"
	PhaseDropoff Phase = "dropoff"
)

func (p Phase) Valid() bool {
	return p == PhasePickup || p == PhaseDropoff
}

// Code is a single-use handoff code scoped to one order and one phase.
// Verification is monotonic: VerifiedAt never changes once set.
type Code struct {
	OrderID    types.ID
	Phase      Phase
	Code       string
	IssuedAt   time.Time
	VerifiedAt *time.Time
}
