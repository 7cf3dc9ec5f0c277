package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"courierd/internal/modules/verification"
	"courierd/internal/types"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrBadRequest        = errors.New("bad request")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyClaimed    = errors.New("already claimed")
	ErrConflict          = errors.New("order state conflict")
	ErrUnverified        = errors.New("handoff not verified")
)

// Codes is the slice of the verification issuer the lifecycle needs.
type Codes interface {
	Issue(ctx context.Context, orderID types.ID, phase verification.Phase) (string, error)
	Verify(ctx context.Context, orderID types.ID, phase verification.Phase, supplied string) error
}

// CourierReleaser frees a courier's active order when a delivery is
// cancelled mid-flight, returning them to matching eligibility.
type CourierReleaser interface {
	ClearActiveOrder(ctx context.Context, actorID types.ID) error
}

type Service struct {
	store    Store
	codes    Codes
	releaser CourierReleaser
	log      *slog.Logger
}

func NewService(store Store, codes Codes, releaser CourierReleaser, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, codes: codes, releaser: releaser, log: log}
}

type CreateCommand struct {
	BusinessID      types.ID
	Type            OrderType
	Pickup          types.Point
	Dropoff         types.Point
	Payout          types.Money
	CourierEligible bool
}

type AdvanceCommand struct {
	OrderID types.ID
	Actor   Actor
}

type CancelCommand struct {
	OrderID types.ID
	Actor   Actor
	Reason  string
}

type AssignCommand struct {
	OrderID   types.ID
	CourierID types.ID
	Kind      CourierKind
}

type VerifyCommand struct {
	OrderID types.ID
	Phase   verification.Phase
	Code    string
	Actor   Actor
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.BusinessID == "" || cmd.Type == "" {
		return "", ErrBadRequest
	}
	o := &Order{
		ID:              newID(),
		BusinessID:      cmd.BusinessID,
		Type:            cmd.Type,
		Status:          StatusPending,
		Pickup:          cmd.Pickup,
		Dropoff:         cmd.Dropoff,
		Payout:          cmd.Payout,
		PaymentStatus:   PaymentPending,
		CourierEligible: cmd.CourierEligible,
		CreatedAt:       time.Now(),
	}
	if err := s.store.Create(ctx, o); err != nil {
		return "", err
	}
	s.appendEvent(ctx, o.ID, "", StatusPending, Actor{Role: RoleSystem})
	return o.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// Advance moves the order one step along the forward chain. The caller's
// role must own the edge: kitchen staff drive pending→ready, only the
// assigned courier drives the delivery leg, and the ready→en-route edge is
// reserved for AssignCourier.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) (Status, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return "", err
	}
	if o.Terminal() {
		return "", ErrInvalidTransition
	}
	next, ok := NextStatus(o.Status)
	if !ok || !CanTransition(o.Status, next) {
		return "", ErrInvalidTransition
	}
	if o.Status == StatusReady {
		// Leaving ready requires a courier claim, which is AssignCourier's
		// atomic job, not a plain advance.
		return "", ErrInvalidTransition
	}
	if !authorized(o, o.Status, next, cmd.Actor) {
		return "", ErrInvalidTransition
	}
	if next == StatusOutForDelivery && o.PickupVerifiedAt == nil {
		return "", ErrUnverified
	}
	if next == StatusDelivered && o.DropoffVerifiedAt == nil {
		return "", ErrUnverified
	}

	applied, err := s.store.UpdateStatus(ctx, o.ID, o.Status, next, o.StatusVersion, nil)
	if err != nil {
		return "", err
	}
	if !applied {
		return "", ErrConflict
	}
	s.appendEvent(ctx, o.ID, o.Status, next, cmd.Actor)
	s.issueCodesFor(ctx, o, next)
	return next, nil
}

// Cancel is idempotent: cancelling a cancelled order is a no-op. Delivered
// orders cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status == StatusCancelled {
		return nil
	}
	if o.Status == StatusDelivered {
		return ErrInvalidTransition
	}
	reason := cmd.Reason
	applied, err := s.store.UpdateStatus(ctx, o.ID, o.Status, StatusCancelled, o.StatusVersion, &reason)
	if err != nil {
		return err
	}
	if !applied {
		// Lost a race; if the winner also cancelled, stay idempotent.
		cur, err := s.store.Get(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if cur.Status == StatusCancelled {
			return nil
		}
		return ErrConflict
	}
	s.appendEvent(ctx, o.ID, o.Status, StatusCancelled, cmd.Actor)
	if o.CourierID != nil && s.releaser != nil {
		if err := s.releaser.ClearActiveOrder(ctx, *o.CourierID); err != nil {
			s.log.Warn("release courier failed", "order_id", o.ID, "courier_id", *o.CourierID, "err", err)
		}
	}
	return nil
}

// CancelForPaymentFailure handles the payment webhook: always accepted from
// any non-terminal state.
func (s *Service) CancelForPaymentFailure(ctx context.Context, orderID types.ID) error {
	if err := s.store.SetPaymentStatus(ctx, orderID, PaymentFailed); err != nil {
		return err
	}
	reason := "payment_failed"
	return s.Cancel(ctx, CancelCommand{
		OrderID: orderID,
		Actor:   Actor{Role: RoleSystem},
		Reason:  reason,
	})
}

// AssignCourier claims the order for a courier. Exactly one of N concurrent
// claims succeeds; the rest get ErrAlreadyClaimed and should quietly drop
// the job from their view.
func (s *Service) AssignCourier(ctx context.Context, cmd AssignCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.CourierID != nil {
		return ErrAlreadyClaimed
	}
	if o.Status != StatusReady {
		return ErrInvalidTransition
	}
	applied, err := s.store.AssignCourier(ctx, cmd.OrderID, cmd.CourierID, cmd.Kind)
	if err != nil {
		return err
	}
	if !applied {
		return ErrAlreadyClaimed
	}
	s.appendEvent(ctx, o.ID, StatusReady, StatusEnRoutePickup, Actor{Role: RoleCourier, ID: cmd.CourierID})
	return nil
}

// VerifyHandoff checks a handoff code and stamps the order. AlreadyVerified
// passes through so callers can treat it as success.
func (s *Service) VerifyHandoff(ctx context.Context, cmd VerifyCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if cmd.Actor.Role == RoleCourier && (o.CourierID == nil || *o.CourierID != cmd.Actor.ID) {
		return ErrInvalidTransition
	}
	if err := s.codes.Verify(ctx, cmd.OrderID, cmd.Phase, cmd.Code); err != nil {
		return err
	}
	if _, err := s.store.MarkVerified(ctx, cmd.OrderID, string(cmd.Phase), time.Now()); err != nil {
		return err
	}
	return nil
}

// OpenJobs lists a business's orders awaiting a courier.
func (s *Service) OpenJobs(ctx context.Context, businessID types.ID) ([]Order, error) {
	return s.store.OpenJobs(ctx, businessID)
}

// ListUndelivered feeds the attention scan.
func (s *Service) ListUndelivered(ctx context.Context) ([]Order, error) {
	return s.store.ListUndelivered(ctx)
}

// Escalate flags or clears manual support escalation.
func (s *Service) Escalate(ctx context.Context, orderID types.ID, escalated bool) error {
	return s.store.SetEscalated(ctx, orderID, escalated)
}

// Events returns the order's transition log.
func (s *Service) Events(ctx context.Context, orderID types.ID) ([]Event, error) {
	return s.store.Events(ctx, orderID)
}

// issueCodesFor generates handoff codes as a transition side effect:
// a pickup code when a courier-eligible delivery becomes ready, a dropoff
// code when it leaves for the customer. Best-effort; the attention monitor
// catches unverified handoffs either way.
func (s *Service) issueCodesFor(ctx context.Context, o *Order, entered Status) {
	if s.codes == nil || o.Type != TypeDelivery {
		return
	}
	switch {
	case entered == StatusReady && o.CourierEligible:
		if _, err := s.codes.Issue(ctx, o.ID, verification.PhasePickup); err != nil {
			s.log.Warn("issue pickup code failed", "order_id", o.ID, "err", err)
		}
	case entered == StatusOutForDelivery:
		if _, err := s.codes.Issue(ctx, o.ID, verification.PhaseDropoff); err != nil {
			s.log.Warn("issue dropoff code failed", "order_id", o.ID, "err", err)
		}
	}
}

func (s *Service) appendEvent(ctx context.Context, orderID types.ID, from, to Status, actor Actor) {
	e := &Event{OrderID: orderID, From: from, To: to, Actor: actor.Role, At: time.Now()}
	if actor.ID != "" {
		id := actor.ID
		e.ActorID = &id
	}
	if err := s.store.AppendEvent(ctx, e); err != nil {
		s.log.Warn("append order event failed", "order_id", orderID, "err", err)
	}
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
