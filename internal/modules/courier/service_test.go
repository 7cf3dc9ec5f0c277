package courier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courierd/internal/modules/location"
	"courierd/internal/types"
)

func newTestService(t *testing.T) (*Service, *location.Service) {
	t.Helper()
	loc := location.NewService(location.NewHub(0), location.Options{})
	return NewService(loc, Options{}), loc
}

func marketplaceOnline(t *testing.T, svc *Service, id types.ID) {
	t.Helper()
	require.NoError(t, svc.GoOnline(context.Background(), OnlineCommand{
		ActorID:     id,
		Kind:        KindMarketplace,
		RadiusMiles: 10,
	}))
}

func TestGoOnlineValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.GoOnline(ctx, OnlineCommand{Kind: KindMarketplace, RadiusMiles: 5}), ErrBadRequest)
	require.ErrorIs(t, svc.GoOnline(ctx, OnlineCommand{ActorID: "c1", Kind: "segway", RadiusMiles: 5}), ErrBadRequest)
	require.ErrorIs(t, svc.GoOnline(ctx, OnlineCommand{ActorID: "c1", Kind: KindMarketplace}), ErrBadRequest)

	// In-house drivers must name their business.
	require.ErrorIs(t, svc.GoOnline(ctx, OnlineCommand{ActorID: "d1", Kind: KindInHouse, RadiusMiles: 5}), ErrBadRequest)

	biz := types.ID("biz1")
	require.NoError(t, svc.GoOnline(ctx, OnlineCommand{ActorID: "d1", Kind: KindInHouse, BusinessID: &biz, RadiusMiles: 5}))
}

type recordingPresence struct {
	added   []types.ID
	removed []types.ID
}

func (p *recordingPresence) Add(_ context.Context, actorID types.ID, _ types.Point) error {
	p.added = append(p.added, actorID)
	return nil
}

func (p *recordingPresence) Remove(_ context.Context, actorID types.ID) error {
	p.removed = append(p.removed, actorID)
	return nil
}

func TestGoOnlineSeedsPresenceFromLastFix(t *testing.T) {
	loc := location.NewService(location.NewHub(0), location.Options{})
	presence := &recordingPresence{}
	svc := NewService(loc, Options{Presence: presence})
	ctx := context.Background()

	// No position known yet: nothing to seed.
	marketplaceOnline(t, svc, "c1")
	require.Empty(t, presence.added)

	// Once a fix is on record, refreshing the session re-enters the GEO set
	// without waiting for the next sample.
	require.NoError(t, loc.Publish(ctx, "c1", location.Sample{
		Position: types.Point{Lat: 37.5, Lng: -77.4}, RecordedAt: time.Now(),
	}))
	marketplaceOnline(t, svc, "c1")
	require.Equal(t, []types.ID{"c1"}, presence.added)

	require.NoError(t, svc.GoOffline(ctx, "c1"))
	require.Equal(t, []types.ID{"c1"}, presence.removed)
}

func TestGoOnlineDefaultRadius(t *testing.T) {
	loc := location.NewService(location.NewHub(0), location.Options{})
	svc := NewService(loc, Options{DefaultRadiusMiles: 8})

	require.NoError(t, svc.GoOnline(context.Background(), OnlineCommand{
		ActorID: "c1", Kind: KindMarketplace,
	}))
	sess, ok := svc.Get("c1")
	require.True(t, ok)
	require.Equal(t, 8.0, sess.RadiusMiles)
}

func TestOnlineOfflineLifecycle(t *testing.T) {
	svc, loc := newTestService(t)
	ctx := context.Background()

	marketplaceOnline(t, svc, "c1")
	sess, ok := svc.Get("c1")
	require.True(t, ok)
	require.Equal(t, StatusIdle, sess.Status)
	require.True(t, sess.Matchable())

	// Subscriptions die with the session.
	ch, _ := loc.Subscribe(ctx, "c1")
	require.NoError(t, svc.GoOffline(ctx, "c1"))

	_, ok = svc.Get("c1")
	require.False(t, ok)

	select {
	case _, open := <-ch:
		require.False(t, open, "going offline must close subscriptions")
	case <-time.After(time.Second):
		t.Fatal("subscription not closed on offline")
	}

	// Offline twice is a no-op.
	require.NoError(t, svc.GoOffline(ctx, "c1"))
}

func TestActiveOrderExclusivity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	marketplaceOnline(t, svc, "c1")
	require.NoError(t, svc.SetActiveOrder(ctx, "c1", "o1"))

	sess, _ := svc.Get("c1")
	require.False(t, sess.Matchable(), "courier holding a delivery is not matchable")
	require.Equal(t, StatusEnRoutePickup, sess.Status)

	// A second, different delivery is refused; re-setting the same is fine.
	require.ErrorIs(t, svc.SetActiveOrder(ctx, "c1", "o2"), ErrActiveDelivery)
	require.NoError(t, svc.SetActiveOrder(ctx, "c1", "o1"))

	require.NoError(t, svc.ClearActiveOrder(ctx, "c1"))
	sess, _ = svc.Get("c1")
	require.True(t, sess.Matchable())
	require.Equal(t, StatusIdle, sess.Status)
}

func TestSetActiveOrderOffline(t *testing.T) {
	svc, _ := newTestService(t)
	require.ErrorIs(t, svc.SetActiveOrder(context.Background(), "ghost", "o1"), ErrOffline)
	// Clearing an offline courier is not an error; cancellation races offline.
	require.NoError(t, svc.ClearActiveOrder(context.Background(), "ghost"))
}

func TestOnBreakNotMatchable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	marketplaceOnline(t, svc, "c1")
	require.NoError(t, svc.SetStatus(ctx, "c1", StatusOnBreak))
	sess, _ := svc.Get("c1")
	require.False(t, sess.Matchable())
}

func TestReaperExpiresSilentSessions(t *testing.T) {
	loc := location.NewService(location.NewHub(0), location.Options{})
	svc := NewService(loc, Options{Expiry: 30 * time.Second})
	ctx := context.Background()

	marketplaceOnline(t, svc, "fresh")
	marketplaceOnline(t, svc, "silent")

	now := time.Now()
	require.NoError(t, loc.Publish(ctx, "fresh", location.Sample{
		Position: types.Point{Lat: 37.5, Lng: -77.4}, RecordedAt: now,
	}))
	require.NoError(t, loc.Publish(ctx, "silent", location.Sample{
		Position: types.Point{Lat: 37.5, Lng: -77.4}, RecordedAt: now.Add(-time.Minute),
	}))

	svc.reapOnce(ctx, now)

	_, ok := svc.Get("fresh")
	require.True(t, ok)
	_, ok = svc.Get("silent")
	require.False(t, ok, "silent session should be reaped")
}

func TestReaperGraceForNewSessions(t *testing.T) {
	loc := location.NewService(location.NewHub(0), location.Options{})
	svc := NewService(loc, Options{Expiry: 30 * time.Second})
	ctx := context.Background()

	// Just online, no samples yet: not reaped.
	marketplaceOnline(t, svc, "c1")
	svc.reapOnce(ctx, time.Now())
	_, ok := svc.Get("c1")
	require.True(t, ok)
}
