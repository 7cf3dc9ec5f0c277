package courier

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"courierd/internal/modules/location"
	"courierd/internal/types"
)

var (
	ErrOffline        = errors.New("courier offline")
	ErrBadRequest     = errors.New("bad request")
	ErrActiveDelivery = errors.New("courier already holds a delivery")
)

// DefaultSessionExpiry is how long a silent session survives. Clients send
// location at high frequency while online, so the samples double as the
// heartbeat; no separate keepalive protocol exists.
const DefaultSessionExpiry = 2 * time.Minute

// Presence maintains the out-of-process courier GEO set used for radius
// queries by other services and dashboards.
type Presence interface {
	Add(ctx context.Context, actorID types.ID, p types.Point) error
	Remove(ctx context.Context, actorID types.ID) error
}

// Service is the in-memory session registry.
type Service struct {
	mu       sync.Mutex
	sessions map[types.ID]*Session

	locations     *location.Service
	presence      Presence
	expiry        time.Duration
	defaultRadius float64
	log           *slog.Logger
}

type Options struct {
	Presence Presence
	Expiry   time.Duration
	// DefaultRadiusMiles is applied when a courier goes online without a
	// search radius. Zero keeps the radius mandatory.
	DefaultRadiusMiles float64
	Logger             *slog.Logger
}

func NewService(locations *location.Service, opts Options) *Service {
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultSessionExpiry
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		sessions:      make(map[types.ID]*Session),
		locations:     locations,
		presence:      opts.Presence,
		expiry:        opts.Expiry,
		defaultRadius: opts.DefaultRadiusMiles,
		log:           opts.Logger,
	}
}

type OnlineCommand struct {
	ActorID     types.ID
	Kind        Kind
	BusinessID  *types.ID
	RadiusMiles float64
}

// GoOnline opens a session. Going online twice refreshes radius and status
// but keeps any active delivery. The courier enters the presence GEO set as
// soon as a position is known: immediately when a fix is already on record,
// otherwise with their first published sample (samples double as the
// presence heartbeat, see DefaultSessionExpiry).
func (s *Service) GoOnline(ctx context.Context, cmd OnlineCommand) error {
	if cmd.RadiusMiles <= 0 {
		cmd.RadiusMiles = s.defaultRadius
	}
	if cmd.ActorID == "" || !cmd.Kind.Valid() || cmd.RadiusMiles <= 0 {
		return ErrBadRequest
	}
	if cmd.Kind == KindInHouse && cmd.BusinessID == nil {
		return ErrBadRequest
	}
	s.mu.Lock()
	sess := s.sessions[cmd.ActorID]
	if sess == nil {
		sess = &Session{
			ActorID:  cmd.ActorID,
			OnlineAt: time.Now(),
			Status:   StatusIdle,
		}
		s.sessions[cmd.ActorID] = sess
	}
	sess.Kind = cmd.Kind
	sess.BusinessID = cmd.BusinessID
	sess.RadiusMiles = cmd.RadiusMiles
	s.mu.Unlock()

	if s.presence != nil {
		if sample, ok := s.locations.Latest(cmd.ActorID); ok {
			if err := s.presence.Add(ctx, cmd.ActorID, sample.Position); err != nil {
				s.log.Warn("presence seed failed", "actor_id", cmd.ActorID, "err", err)
			}
		}
	}
	return nil
}

// GoOffline tears the session down: stream state dropped, subscriptions
// closed, presence removed.
func (s *Service) GoOffline(ctx context.Context, actorID types.ID) error {
	s.mu.Lock()
	_, ok := s.sessions[actorID]
	delete(s.sessions, actorID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.locations.Drop(actorID)
	if s.presence != nil {
		if err := s.presence.Remove(ctx, actorID); err != nil {
			s.log.Warn("presence remove failed", "actor_id", actorID, "err", err)
		}
	}
	return nil
}

func (s *Service) SetStatus(_ context.Context, actorID types.ID, status Status) error {
	if !status.Valid() {
		return ErrBadRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[actorID]
	if !ok {
		return ErrOffline
	}
	sess.Status = status
	return nil
}

// SetActiveOrder marks the courier as holding a delivery, removing them from
// all matching.
func (s *Service) SetActiveOrder(_ context.Context, actorID, orderID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[actorID]
	if !ok {
		return ErrOffline
	}
	if sess.ActiveOrderID != nil && *sess.ActiveOrderID != orderID {
		return ErrActiveDelivery
	}
	id := orderID
	sess.ActiveOrderID = &id
	sess.Status = StatusEnRoutePickup
	return nil
}

// ClearActiveOrder returns the courier to matching eligibility. No-op for
// offline couriers.
func (s *Service) ClearActiveOrder(_ context.Context, actorID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[actorID]
	if !ok {
		return nil
	}
	sess.ActiveOrderID = nil
	sess.Status = StatusIdle
	return nil
}

// Get returns a copy of the session.
func (s *Service) Get(actorID types.ID) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[actorID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Online lists all current sessions.
func (s *Service) Online() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	return out
}

// RunReaper forces silent sessions offline: a courier whose last sample is
// older than the expiry window is gone, whatever their app thinks.
func (s *Service) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(s.expiry / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapOnce(ctx, time.Now())
		}
	}
}

func (s *Service) reapOnce(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var expired []types.ID
	for id, sess := range s.sessions {
		latest, ok := s.locations.Latest(id)
		last := sess.OnlineAt
		if ok {
			last = latest.RecordedAt
		}
		if now.Sub(last) > s.expiry {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.log.Info("session expired, forcing offline", "actor_id", id)
		if err := s.GoOffline(ctx, id); err != nil {
			s.log.Warn("forced offline failed", "actor_id", id, "err", err)
		}
	}
}
