// Package location ingests courier and driver GPS samples and fans them out
// to live subscribers with last-known-value semantics.
package location

import (
	"time"

	"courierd/internal/geo"
	"courierd/internal/types"
)

// Sample is one immutable GPS fix for an actor. It is superseded by the next
// sample for the same actor, never mutated.
type Sample struct {
	Position       types.Point
	HeadingDegrees *float64
	SpeedMps       *float64
	RecordedAt     time.Time
}

// SpeedMph returns the reported speed in miles per hour, or false when the
// sample carries no speed.
func (s Sample) SpeedMph() (float64, bool) {
	if s.SpeedMps == nil {
		return 0, false
	}
	return *s.SpeedMps * geo.MphPerMps, true
}

// FreshAt reports whether the sample is inside the freshness window at the
// given instant. Stale samples must be treated as "no current location".
func (s Sample) FreshAt(now time.Time, window time.Duration) bool {
	return now.Sub(s.RecordedAt) <= window
}

// Snapshot is a persisted location fix, retained as a short trail for path
// rendering. The trail is not authoritative state.
type Snapshot struct {
	ID         int64
	ActorID    types.ID
	Position   types.Point
	RecordedAt time.Time
}
