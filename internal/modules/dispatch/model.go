// Package dispatch matches open delivery jobs to roaming couriers. It merges
// every job source (per-business order queues plus the global quick-delivery
// queue) into one radius-scoped feed per courier and arbitrates exclusive
// job acceptance.
package dispatch

import (
	"errors"
	"time"

	"courierd/internal/types"
)

var (
	// ErrAlreadyClaimed is the expected outcome of losing an accept race.
	// Callers drop the job from their view; nobody shows the user an error.
	ErrAlreadyClaimed = errors.New("job already claimed")
	ErrNotFound       = errors.New("job not found")
	ErrBadRequest     = errors.New("bad request")
	ErrOffline        = errors.New("courier offline")
	ErrActiveDelivery = errors.New("courier already holds a delivery")
	// ErrStaleLocation means the courier's last fix is outside the freshness
	// window; matching refuses to trust it.
	ErrStaleLocation = errors.New("no fresh location for courier")
)

// SourceKind tags where a job came from so the UI can tell business
// deliveries from quick deliveries.
type SourceKind string

const (
	SourceBusiness SourceKind = "business"
	SourceQuick    SourceKind = "quick"
)

// Job is one open delivery awaiting a courier.
type Job struct {
	ID         types.ID
	Source     SourceKind
	BusinessID *types.ID
	Pickup     types.Point
	Dropoff    types.Point
	Payout     types.Money
	PostedAt   time.Time
}

// Posting is a Job as seen by one courier: ephemeral, recomputed per
// refresh, never stored.
type Posting struct {
	Job
	DistanceMiles float64
}

// QuickDelivery is a standalone job (package, letter) with no business
// behind it, sourced from the global quick feed.
type QuickDelivery struct {
	ID        types.ID
	Pickup    types.Point
	Dropoff   types.Point
	Payout    types.Money
	CourierID *types.ID
	CreatedAt time.Time
	ClaimedAt *time.Time
}
