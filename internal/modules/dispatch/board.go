package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"courierd/internal/geo"
	"courierd/internal/modules/courier"
	"courierd/internal/modules/location"
	"courierd/internal/modules/order"
	"courierd/internal/types"
)

var nowFunc = time.Now

// DefaultRefresh is the feed recompute cadence when nothing on the board
// changes. Changes (claims, new sources) push immediately.
const DefaultRefresh = 5 * time.Second

// Board merges every job source into per-courier radius-scoped views and
// arbitrates exclusive acceptance. Postings are recomputed from the sources
// on every read; the board itself stores no job state.
type Board struct {
	mu       sync.Mutex
	sources  map[string]Source
	watchers map[int]chan struct{}
	nextID   int

	couriers  *courier.Service
	locations *location.Service
	orders    OrderGateway
	quick     QuickStore
	refresh   time.Duration
	log       *slog.Logger
}

type Options struct {
	Refresh time.Duration
	Logger  *slog.Logger
}

func NewBoard(couriers *courier.Service, locations *location.Service, orders OrderGateway, quick QuickStore, opts Options) *Board {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := &Board{
		sources:   make(map[string]Source),
		watchers:  make(map[int]chan struct{}),
		couriers:  couriers,
		locations: locations,
		orders:    orders,
		quick:     quick,
		refresh:   opts.Refresh,
		log:       opts.Logger,
	}
	if quick != nil {
		src := NewQuickSource(quick)
		b.sources[src.ID()] = src
	}
	return b
}

// AddBusiness registers a business's order queue as a job source.
func (b *Board) AddBusiness(businessID types.ID) {
	src := NewBusinessSource(businessID, b.orders)
	b.mu.Lock()
	b.sources[src.ID()] = src
	b.mu.Unlock()
	b.bump()
}

// RemoveBusiness detaches a business from matching. Jobs already accepted
// are unaffected.
func (b *Board) RemoveBusiness(businessID types.ID) {
	b.mu.Lock()
	delete(b.sources, "business:"+string(businessID))
	b.mu.Unlock()
	b.bump()
}

// AvailableJobs computes the courier's current view of the board: every job
// from their eligible sources whose pickup lies inside their search radius,
// nearest first. A courier holding a delivery or on break sees nothing.
func (b *Board) AvailableJobs(ctx context.Context, courierID types.ID) ([]Posting, error) {
	sess, ok := b.couriers.Get(courierID)
	if !ok {
		return nil, ErrOffline
	}
	if !sess.Matchable() {
		return nil, nil
	}
	fix, ok := b.locations.Fresh(courierID, nowFunc())
	if !ok {
		return nil, ErrStaleLocation
	}

	jobs := b.collect(ctx, b.eligibleSources(sess))

	seen := make(map[types.ID]bool, len(jobs))
	postings := make([]Posting, 0, len(jobs))
	for _, j := range jobs {
		if seen[j.ID] {
			continue
		}
		seen[j.ID] = true
		d := geo.DistanceMiles(fix.Position, j.Pickup)
		if d > sess.RadiusMiles {
			continue
		}
		postings = append(postings, Posting{Job: j, DistanceMiles: d})
	}
	sort.Slice(postings, func(i, k int) bool {
		if postings[i].DistanceMiles != postings[k].DistanceMiles {
			return postings[i].DistanceMiles < postings[k].DistanceMiles
		}
		return postings[i].PostedAt.Before(postings[k].PostedAt)
	})
	return postings, nil
}

// eligibleSources applies kind scoping: in-house drivers see only their own
// business's queue, marketplace couriers see every source.
func (b *Board) eligibleSources(sess courier.Session) []Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sess.Kind == courier.KindInHouse {
		if sess.BusinessID == nil {
			return nil
		}
		if src, ok := b.sources["business:"+string(*sess.BusinessID)]; ok {
			return []Source{src}
		}
		return nil
	}
	out := make([]Source, 0, len(b.sources))
	for _, src := range b.sources {
		out = append(out, src)
	}
	return out
}

// collect queries the sources concurrently. A failing source is logged and
// skipped; one slow business must not blank the whole board.
func (b *Board) collect(ctx context.Context, sources []Source) []Job {
	type result struct {
		jobs []Job
		err  error
		id   string
	}
	results := make(chan result, len(sources))
	for _, src := range sources {
		go func(src Source) {
			jobs, err := src.Open(ctx)
			results <- result{jobs: jobs, err: err, id: src.ID()}
		}(src)
	}

	var merged []Job
	for range sources {
		r := <-results
		if r.err != nil {
			b.log.Warn("job source failed", "source", r.id, "err", r.err)
			continue
		}
		merged = append(merged, r.jobs...)
	}
	return merged
}

// Accept claims a job for a courier. The courier slot is reserved first,
// then the job's own compare-and-set runs; losing the claim releases the
// slot. Exactly one of N racing couriers wins, the rest get ErrAlreadyClaimed.
func (b *Board) Accept(ctx context.Context, courierID, jobID types.ID) error {
	sess, ok := b.couriers.Get(courierID)
	if !ok {
		return ErrOffline
	}
	if err := b.couriers.SetActiveOrder(ctx, courierID, jobID); err != nil {
		switch {
		case errors.Is(err, courier.ErrOffline):
			return ErrOffline
		case errors.Is(err, courier.ErrActiveDelivery):
			return ErrActiveDelivery
		default:
			return err
		}
	}

	err := b.claim(ctx, sess, jobID)
	if err != nil {
		if clearErr := b.couriers.ClearActiveOrder(ctx, courierID); clearErr != nil {
			b.log.Warn("release after lost claim failed", "courier_id", courierID, "err", clearErr)
		}
		return err
	}
	b.bump()
	return nil
}

func (b *Board) claim(ctx context.Context, sess courier.Session, jobID types.ID) error {
	err := b.orders.AssignCourier(ctx, order.AssignCommand{
		OrderID:   jobID,
		CourierID: sess.ActorID,
		Kind:      order.CourierKind(sess.Kind),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, order.ErrAlreadyClaimed), errors.Is(err, order.ErrInvalidTransition):
		return ErrAlreadyClaimed
	case errors.Is(err, order.ErrNotFound):
		// Not an order; fall through to the quick-delivery queue.
	default:
		return err
	}

	if b.quick == nil {
		return ErrNotFound
	}
	won, err := b.quick.Claim(ctx, jobID, sess.ActorID)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyClaimed
	}
	return nil
}

// CompleteQuick releases the courier after a quick delivery is dropped off.
// Business orders release through the order lifecycle instead.
func (b *Board) CompleteQuick(ctx context.Context, courierID types.ID) error {
	if err := b.couriers.ClearActiveOrder(ctx, courierID); err != nil {
		return err
	}
	b.bump()
	return nil
}

type QuickCommand struct {
	Pickup  types.Point
	Dropoff types.Point
	Payout  types.Money
}

// CreateQuick posts a standalone delivery to the global quick queue.
func (b *Board) CreateQuick(ctx context.Context, cmd QuickCommand) (types.ID, error) {
	if b.quick == nil {
		return "", ErrNotFound
	}
	if !geo.ValidPoint(cmd.Pickup) || !geo.ValidPoint(cmd.Dropoff) {
		return "", ErrBadRequest
	}
	q := &QuickDelivery{
		ID:        newJobID(),
		Pickup:    cmd.Pickup,
		Dropoff:   cmd.Dropoff,
		Payout:    cmd.Payout,
		CreatedAt: nowFunc(),
	}
	if err := b.quick.Create(ctx, q); err != nil {
		return "", err
	}
	b.bump()
	return q.ID, nil
}

// Feed streams the courier's view of the board: one snapshot immediately,
// then on every board change and on the refresh tick. The channel closes
// when the context ends or the courier goes offline. Slow consumers only
// ever see the newest snapshot.
func (b *Board) Feed(ctx context.Context, courierID types.ID) <-chan []Posting {
	out := make(chan []Posting, 1)
	changed := b.watch()

	go func() {
		defer close(out)
		defer b.unwatch(changed)

		ticker := time.NewTicker(b.refresh)
		defer ticker.Stop()

		for {
			postings, err := b.AvailableJobs(ctx, courierID)
			switch {
			case errors.Is(err, ErrOffline):
				return
			case errors.Is(err, ErrStaleLocation):
				// No trustworthy position, nothing to offer yet.
				postings = nil
			case err != nil:
				b.log.Warn("feed recompute failed", "courier_id", courierID, "err", err)
				postings = nil
			}
			offerSnapshot(out, postings)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-b.changedCh(changed):
			}
		}
	}()
	return out
}

// offerSnapshot replaces whatever unread snapshot sits in the buffer.
func offerSnapshot(out chan []Posting, postings []Posting) {
	for {
		select {
		case out <- postings:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

func (b *Board) watch() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = make(chan struct{}, 1)
	return id
}

func (b *Board) unwatch(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.watchers, id)
}

func (b *Board) changedCh(id int) <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watchers[id]
}

// bump nudges every live feed to recompute. Non-blocking; a feed that
// already has a pending nudge needs no second one.
func (b *Board) bump() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func newJobID() types.ID {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return types.ID(hex.EncodeToString(buf))
}
