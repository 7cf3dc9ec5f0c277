// Package courier tracks online delivery-agent sessions: who is online,
// where they roam, and whether they currently hold a delivery.
package courier

import (
	"time"

	"courierd/internal/types"
)

// Kind distinguishes a business's own driver from a marketplace courier.
type Kind string

const (
	KindInHouse     Kind = "in_house"
	KindMarketplace Kind = "marketplace"
)

func (k Kind) Valid() bool {
	return k == KindInHouse || k == KindMarketplace
}

// Status is the courier's self-reported working state while online.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusEnRoutePickup Status = "en_route_pickup"
	StatusInTransit     Status = "in_transit"
	StatusOnBreak       Status = "on_break"
)

var allowedStatuses = [...]Status{
	StatusIdle, StatusEnRoutePickup, StatusInTransit, StatusOnBreak,
}

func (s Status) Valid() bool {
	for _, v := range allowedStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Session is one online courier. It exists only between "go online" and
// "go offline" (or reaper expiry); there is no durable courier record here.
type Session struct {
	ActorID types.ID
	Kind    Kind
	// BusinessID is set for in-house drivers, who work exactly one business.
	BusinessID  *types.ID
	Status      Status
	RadiusMiles float64
	// ActiveOrderID is the single delivery the courier holds. While set, the
	// courier appears in no dispatch feed.
	ActiveOrderID *types.ID
	OnlineAt      time.Time
}

// Matchable reports whether the session may receive job postings.
func (s *Session) Matchable() bool {
	return s.ActiveOrderID == nil && s.Status != StatusOnBreak
}
