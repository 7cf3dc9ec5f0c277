package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"courierd/internal/geo"
	"courierd/internal/types"
)

// DefaultStaleAfter is the freshness window: samples older than this are
// treated as "no current location" by every consumer.
const DefaultStaleAfter = 30 * time.Second

// snapshotEvery controls how often an applied sample is also persisted to the
// snapshot trail. Persisting every tick would swamp the store for no benefit.
const snapshotEvery = 10

var ErrBadSample = errors.New("invalid location sample")

// Mirror keeps the last-known sample visible to out-of-process readers
// (map renderers). Write-behind; losing a write costs one tick of freshness.
type Mirror interface {
	SetLatest(ctx context.Context, actorID types.ID, s Sample) error
}

// SnapshotStore persists the sampled location trail.
type SnapshotStore interface {
	Append(ctx context.Context, snap Snapshot) error
}

// PresenceUpdater is notified of applied positions so radius matching stays
// current. Implemented by the courier presence store.
type PresenceUpdater interface {
	UpdatePosition(ctx context.Context, actorID types.ID, p types.Point) error
}

// Service validates and routes samples: hub for in-process subscribers,
// mirror and presence for out-of-process consumers, snapshots for trails.
type Service struct {
	hub        *Hub
	mirror     Mirror
	snapshots  SnapshotStore
	presence   PresenceUpdater
	staleAfter time.Duration
	log        *slog.Logger

	mu     sync.Mutex
	counts map[types.ID]int
}

type Options struct {
	Mirror     Mirror
	Snapshots  SnapshotStore
	Presence   PresenceUpdater
	StaleAfter time.Duration
	Logger     *slog.Logger
}

func NewService(hub *Hub, opts Options) *Service {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		hub:        hub,
		mirror:     opts.Mirror,
		snapshots:  opts.Snapshots,
		presence:   opts.Presence,
		staleAfter: opts.StaleAfter,
		log:        opts.Logger,
		counts:     make(map[types.ID]int),
	}
}

// Publish applies a sample for an online actor. Out-of-order samples are
// dropped silently per the stream contract; side channels (mirror, presence,
// snapshots) are fire-and-forget and never fail the publish.
func (s *Service) Publish(ctx context.Context, actorID types.ID, sample Sample) error {
	if actorID == "" || sample.RecordedAt.IsZero() {
		return ErrBadSample
	}
	if !geo.ValidPoint(sample.Position) {
		return ErrBadSample
	}
	if !s.hub.Publish(actorID, sample) {
		return nil
	}
	if s.presence != nil {
		if err := s.presence.UpdatePosition(ctx, actorID, sample.Position); err != nil {
			s.log.Warn("presence update failed", "actor_id", actorID, "err", err)
		}
	}
	if s.mirror != nil {
		if err := s.mirror.SetLatest(ctx, actorID, sample); err != nil {
			s.log.Warn("location mirror write failed", "actor_id", actorID, "err", err)
		}
	}
	if s.snapshots != nil && s.bumpCount(actorID)%snapshotEvery == 0 {
		snap := Snapshot{ActorID: actorID, Position: sample.Position, RecordedAt: sample.RecordedAt}
		if err := s.snapshots.Append(ctx, snap); err != nil {
			s.log.Warn("snapshot append failed", "actor_id", actorID, "err", err)
		}
	}
	return nil
}

func (s *Service) bumpCount(actorID types.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[actorID]++
	return s.counts[actorID]
}

// Subscribe returns the live sample sequence for an actor.
func (s *Service) Subscribe(ctx context.Context, actorID types.ID) (<-chan Sample, func()) {
	return s.hub.Subscribe(ctx, actorID)
}

// Latest returns the actor's last-known sample regardless of freshness.
func (s *Service) Latest(actorID types.ID) (Sample, bool) {
	return s.hub.Latest(actorID)
}

// Fresh returns the actor's last-known sample only if it is inside the
// freshness window.
func (s *Service) Fresh(actorID types.ID, now time.Time) (Sample, bool) {
	sample, ok := s.hub.Latest(actorID)
	if !ok || !sample.FreshAt(now, s.staleAfter) {
		return Sample{}, false
	}
	return sample, true
}

// Trail returns the actor's recent path, oldest first.
func (s *Service) Trail(actorID types.ID) []Sample {
	return s.hub.Trail(actorID)
}

// Drop tears down all stream state for an actor that went offline.
func (s *Service) Drop(actorID types.ID) {
	s.hub.Drop(actorID)
	s.mu.Lock()
	delete(s.counts, actorID)
	s.mu.Unlock()
}

// StaleAfter exposes the configured freshness window.
func (s *Service) StaleAfter() time.Duration {
	return s.staleAfter
}
