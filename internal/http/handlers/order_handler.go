package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courierd/internal/http/middleware"
	"courierd/internal/modules/order"
	"courierd/internal/modules/verification"
	"courierd/internal/types"
)

// BusinessRegistrar controls which businesses have a job source on the
// dispatch board. Implemented by dispatch.Board.
type BusinessRegistrar interface {
	AddBusiness(businessID types.ID)
	RemoveBusiness(businessID types.ID)
}

type OrderHandler struct {
	orders *order.Service
	board  BusinessRegistrar
}

func NewOrderHandler(orders *order.Service, board BusinessRegistrar) *OrderHandler {
	return &OrderHandler{orders: orders, board: board}
}

// actorFrom builds the acting identity for a mutation. The role claim wins
// when auth is on; dev mode trusts the body.
func actorFrom(c *gin.Context, bodyRole, bodyID string) order.Actor {
	role := middleware.CallerRole(c)
	if role == "" {
		role = bodyRole
	}
	return order.Actor{Role: order.Role(role), ID: callerID(c, bodyID)}
}

type createOrderReq struct {
	BusinessID      string  `json:"business_id"`
	Type            string  `json:"type"`
	PickupLat       float64 `json:"pickup_lat"`
	PickupLng       float64 `json:"pickup_lng"`
	DropoffLat      float64 `json:"dropoff_lat"`
	DropoffLng      float64 `json:"dropoff_lng"`
	PayoutAmount    int64   `json:"payout_amount"`
	Currency        string  `json:"currency"`
	CourierEligible bool    `json:"courier_eligible"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.orders.Create(c.Request.Context(), order.CreateCommand{
		BusinessID:      types.ID(req.BusinessID),
		Type:            order.OrderType(req.Type),
		Pickup:          types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff:         types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		Payout:          types.Money{Amount: req.PayoutAmount, Currency: req.Currency},
		CourierEligible: req.CourierEligible,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	// First courier-eligible delivery puts the business's queue on the board;
	// registration is idempotent.
	if req.CourierEligible && order.OrderType(req.Type) == order.TypeDelivery && h.board != nil {
		h.board.AddBusiness(types.ID(req.BusinessID))
	}
	writeJSON(c, http.StatusCreated, gin.H{"order_id": id, "status": order.StatusPending})
}

type orderResp struct {
	OrderID         string `json:"order_id"`
	BusinessID      string `json:"business_id"`
	Type            string `json:"type"`
	Status          string `json:"status"`
	CourierID       string `json:"courier_id,omitempty"`
	PaymentStatus   string `json:"payment_status"`
	Escalated       bool   `json:"escalated"`
	PickupVerified  bool   `json:"pickup_verified"`
	DropoffVerified bool   `json:"dropoff_verified"`
}

func toOrderResp(o *order.Order) orderResp {
	resp := orderResp{
		OrderID:         string(o.ID),
		BusinessID:      string(o.BusinessID),
		Type:            string(o.Type),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Escalated:       o.Escalated,
		PickupVerified:  o.PickupVerifiedAt != nil,
		DropoffVerified: o.DropoffVerifiedAt != nil,
	}
	if o.CourierID != nil {
		resp.CourierID = string(*o.CourierID)
	}
	return resp
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResp(o))
}

type advanceReq struct {
	Role    string `json:"role"`
	ActorID string `json:"actor_id"`
}

func (h *OrderHandler) Advance(c *gin.Context) {
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	next, err := h.orders.Advance(c.Request.Context(), order.AdvanceCommand{
		OrderID: types.ID(c.Param("id")),
		Actor:   actorFrom(c, req.Role, req.ActorID),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": next})
}

type cancelReq struct {
	Role    string `json:"role"`
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.orders.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: types.ID(c.Param("id")),
		Actor:   actorFrom(c, req.Role, req.ActorID),
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCancelled})
}

type verifyReq struct {
	Phase   string `json:"phase"`
	Code    string `json:"code"`
	Role    string `json:"role"`
	ActorID string `json:"actor_id"`
}

func (h *OrderHandler) Verify(c *gin.Context) {
	var req verifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.orders.VerifyHandoff(c.Request.Context(), order.VerifyCommand{
		OrderID: types.ID(c.Param("id")),
		Phase:   verification.Phase(req.Phase),
		Code:    req.Code,
		Actor:   actorFrom(c, req.Role, req.ActorID),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"phase": req.Phase, "verified": true})
}

type eventResp struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Actor   string `json:"actor"`
	ActorID string `json:"actor_id,omitempty"`
	At      int64  `json:"at"`
}

func (h *OrderHandler) Events(c *gin.Context) {
	events, err := h.orders.Events(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]eventResp, len(events))
	for i, e := range events {
		out[i] = eventResp{
			From:  string(e.From),
			To:    string(e.To),
			Actor: string(e.Actor),
			At:    e.At.UnixMilli(),
		}
		if e.ActorID != nil {
			out[i].ActorID = string(*e.ActorID)
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"events": out})
}

type escalateReq struct {
	Escalated bool `json:"escalated"`
}

func (h *OrderHandler) Escalate(c *gin.Context) {
	var req escalateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.orders.Escalate(c.Request.Context(), types.ID(c.Param("id")), req.Escalated); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"escalated": req.Escalated})
}

type paymentFailedReq struct {
	OrderID string `json:"order_id"`
}

// PaymentFailed is the payment provider webhook. It must answer quickly and
// idempotently; providers retry aggressively.
func (h *OrderHandler) PaymentFailed(c *gin.Context) {
	var req paymentFailedReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrderID == "" {
		writeError(c, http.StatusBadRequest, "missing order_id")
		return
	}
	err := h.orders.CancelForPaymentFailure(c.Request.Context(), types.ID(req.OrderID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": req.OrderID, "handled_at": time.Now().UnixMilli()})
}
