// Concurrency tests for order state transitions; run with -race.
package order

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"courierd/internal/types"
)

func TestConcurrentAssignSameOrder(t *testing.T) {
	env := newTestEnv(t)
	svc := env.svc
	ctx := context.Background()

	id := mustCreateDelivery(t, svc)
	kitchenAdvance(t, svc, id)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		courierID := types.ID(fmt.Sprintf("c%d", i))
		wg.Add(1)
		go func(cid types.ID) {
			defer wg.Done()
			<-start
			errs <- svc.AssignCourier(ctx, AssignCommand{OrderID: id, CourierID: cid, Kind: KindMarketplace})
		}(courierID)
	}

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrAlreadyClaimed {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 winning claim, got %d", success)
	}

	o, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != StatusEnRoutePickup {
		t.Fatalf("unexpected final status: %s", o.Status)
	}
	if o.CourierID == nil || *o.CourierID == "" {
		t.Fatal("expected courier_id to be set")
	}
}

func TestConcurrentAssignVsCancel(t *testing.T) {
	env := newTestEnv(t)
	svc := env.svc
	ctx := context.Background()

	id := mustCreateDelivery(t, svc)
	kitchenAdvance(t, svc, id)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.AssignCourier(ctx, AssignCommand{OrderID: id, CourierID: "c1", Kind: KindMarketplace})
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Cancel(ctx, CancelCommand{OrderID: id, Actor: Actor{Role: RoleSystem}, Reason: "race"})
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && err != ErrAlreadyClaimed && err != ErrConflict && err != ErrInvalidTransition {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	o, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != StatusCancelled && o.Status != StatusEnRoutePickup {
		t.Fatalf("unexpected final status: %s", o.Status)
	}
}

// Fuzz over random transition sequences: the courier-assignment invariant
// must hold after every operation.
func TestCourierInvariantUnderRandomOps(t *testing.T) {
	env := newTestEnv(t)
	svc := env.svc
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	checkInvariant := func(id types.ID) {
		o, err := svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		held := o.Status == StatusEnRoutePickup || o.Status == StatusOutForDelivery
		if held && o.CourierID == nil {
			t.Fatalf("order %s in %s with no courier", id, o.Status)
		}
		if o.CourierID == nil && (o.AcceptedAt != nil) {
			t.Fatalf("order %s has accepted_at but no courier", id)
		}
	}

	for run := 0; run < 50; run++ {
		id := mustCreateDelivery(t, svc)
		actors := []Actor{
			{Role: RoleKitchen, ID: "staff1"},
			{Role: RoleCourier, ID: "c1"},
			{Role: RoleCourier, ID: "c2"},
			{Role: RoleSystem},
		}
		for step := 0; step < 12; step++ {
			switch rng.Intn(4) {
			case 0:
				_, _ = svc.Advance(ctx, AdvanceCommand{OrderID: id, Actor: actors[rng.Intn(len(actors))]})
			case 1:
				_ = svc.AssignCourier(ctx, AssignCommand{OrderID: id, CourierID: actors[1].ID, Kind: KindMarketplace})
			case 2:
				_ = svc.AssignCourier(ctx, AssignCommand{OrderID: id, CourierID: actors[2].ID, Kind: KindInHouse})
			case 3:
				if rng.Intn(4) == 0 {
					_ = svc.Cancel(ctx, CancelCommand{OrderID: id, Actor: Actor{Role: RoleSystem}, Reason: "fuzz"})
				}
			}
			checkInvariant(id)
		}
	}
}
