package location

import (
	"context"
	"sync"

	"courierd/internal/types"
)

// DefaultTrailLength bounds the per-actor sample history kept for path trails.
const DefaultTrailLength = 20

// Hub is the in-process publish/subscribe channel for location samples.
// Publishing never blocks on subscribers: each subscriber holds a one-slot
// buffer and a slow consumer simply sees the newest sample, not every sample.
type Hub struct {
	mu       sync.Mutex
	actors   map[types.ID]*actorState
	trailLen int
}

type actorState struct {
	latest  *Sample
	trail   []Sample
	subs    map[int]chan Sample
	nextSub int
}

func NewHub(trailLen int) *Hub {
	if trailLen <= 0 {
		trailLen = DefaultTrailLength
	}
	return &Hub{actors: make(map[types.ID]*actorState), trailLen: trailLen}
}

// Publish applies a sample for the actor and fans it out. Samples for the
// same actor must arrive in non-decreasing timestamp order; an older sample
// is dropped and Publish returns false. Mobile networks reorder freely, so
// this is an expected outcome, not an error.
func (h *Hub) Publish(actorID types.ID, s Sample) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.actors[actorID]
	if st == nil {
		st = &actorState{subs: make(map[int]chan Sample)}
		h.actors[actorID] = st
	}
	if st.latest != nil && s.RecordedAt.Before(st.latest.RecordedAt) {
		return false
	}
	st.latest = &s
	st.trail = append(st.trail, s)
	if len(st.trail) > h.trailLen {
		st.trail = st.trail[len(st.trail)-h.trailLen:]
	}
	for _, ch := range st.subs {
		offerLatest(ch, s)
	}
	return true
}

// offerLatest delivers s without blocking: if the subscriber's slot is
// occupied the stale value is replaced by the new one.
func offerLatest(ch chan Sample, s Sample) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe returns a live sequence of samples for the actor. The channel is
// closed when the context is cancelled or the actor is dropped from the hub
// (goes offline). The returned cancel func is idempotent.
func (h *Hub) Subscribe(ctx context.Context, actorID types.ID) (<-chan Sample, func()) {
	h.mu.Lock()
	st := h.actors[actorID]
	if st == nil {
		st = &actorState{subs: make(map[int]chan Sample)}
		h.actors[actorID] = st
	}
	id := st.nextSub
	st.nextSub++
	ch := make(chan Sample, 1)
	st.subs[id] = ch
	if st.latest != nil {
		ch <- *st.latest
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if st, ok := h.actors[actorID]; ok {
				// The actor may have gone offline and back online since this
				// subscription was taken; only close our own channel.
				if c, ok := st.subs[id]; ok && c == ch {
					delete(st.subs, id)
					close(c)
				}
			}
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

// Latest returns the actor's last-known sample.
func (h *Hub) Latest(actorID types.ID) (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.actors[actorID]
	if st == nil || st.latest == nil {
		return Sample{}, false
	}
	return *st.latest, true
}

// Trail returns a copy of the actor's recent samples, oldest first.
func (h *Hub) Trail(actorID types.ID) []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.actors[actorID]
	if st == nil {
		return nil
	}
	out := make([]Sample, len(st.trail))
	copy(out, st.trail)
	return out
}

// Drop removes all state for an actor and closes every subscription. Called
// when the actor goes offline.
func (h *Hub) Drop(actorID types.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.actors[actorID]
	if st == nil {
		return
	}
	for id, ch := range st.subs {
		delete(st.subs, id)
		close(ch)
	}
	delete(h.actors, actorID)
}
