package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courierd/internal/types"
)

type recordingPresence struct {
	updates []types.Point
}

func (p *recordingPresence) UpdatePosition(_ context.Context, _ types.ID, pt types.Point) error {
	p.updates = append(p.updates, pt)
	return nil
}

func TestServicePublishValidates(t *testing.T) {
	svc := NewService(NewHub(0), Options{})
	ctx := context.Background()

	err := svc.Publish(ctx, "", sampleAt(time.Now(), 1, 1))
	require.ErrorIs(t, err, ErrBadSample)

	err = svc.Publish(ctx, "c1", Sample{Position: types.Point{Lat: 1, Lng: 1}})
	require.ErrorIs(t, err, ErrBadSample, "zero timestamp")

	err = svc.Publish(ctx, "c1", sampleAt(time.Now(), 91, 0))
	require.ErrorIs(t, err, ErrBadSample, "latitude out of range")
}

func TestServiceFreshness(t *testing.T) {
	svc := NewService(NewHub(0), Options{StaleAfter: 30 * time.Second})
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.Publish(ctx, "c1", sampleAt(now.Add(-10*time.Second), 37.5, -77.4)))
	_, ok := svc.Fresh("c1", now)
	require.True(t, ok, "10s-old sample is fresh")

	require.NoError(t, svc.Publish(ctx, "c2", sampleAt(now.Add(-45*time.Second), 37.5, -77.4)))
	_, ok = svc.Fresh("c2", now)
	require.False(t, ok, "45s-old sample is stale")

	// Latest still returns the stale sample; only Fresh hides it.
	_, ok = svc.Latest("c2")
	require.True(t, ok)
}

func TestServicePresenceNotified(t *testing.T) {
	presence := &recordingPresence{}
	svc := NewService(NewHub(0), Options{Presence: presence})
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.Publish(ctx, "c1", sampleAt(now, 37.5, -77.4)))
	require.Len(t, presence.updates, 1)

	// A dropped out-of-order sample must not reach presence.
	require.NoError(t, svc.Publish(ctx, "c1", sampleAt(now.Add(-time.Minute), 1, 1)))
	require.Len(t, presence.updates, 1)
}

func TestSampleSpeedMph(t *testing.T) {
	s := Sample{}
	_, ok := s.SpeedMph()
	require.False(t, ok)

	mps := 10.0
	s.SpeedMps = &mps
	mph, ok := s.SpeedMph()
	require.True(t, ok)
	require.InDelta(t, 22.37, mph, 0.01)
}
