package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"courierd/internal/http/middleware"
	"courierd/internal/modules/courier"
	"courierd/internal/modules/dispatch"
	"courierd/internal/modules/location"
	"courierd/internal/types"
)

type CourierHandler struct {
	couriers  *courier.Service
	locations *location.Service
	board     *dispatch.Board
}

func NewCourierHandler(couriers *courier.Service, locations *location.Service, board *dispatch.Board) *CourierHandler {
	return &CourierHandler{couriers: couriers, locations: locations, board: board}
}

// callerID prefers the authenticated uid; the body field is the dev-mode
// fallback when auth is disabled.
func callerID(c *gin.Context, bodyID string) types.ID {
	if uid := middleware.CallerUID(c); uid != "" {
		return types.ID(uid)
	}
	return types.ID(bodyID)
}

type onlineReq struct {
	CourierID   string  `json:"courier_id"`
	Kind        string  `json:"kind"`
	BusinessID  string  `json:"business_id"`
	RadiusMiles float64 `json:"radius_miles"`
}

func (h *CourierHandler) Online(c *gin.Context) {
	var req onlineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := courier.OnlineCommand{
		ActorID:     callerID(c, req.CourierID),
		Kind:        courier.Kind(req.Kind),
		RadiusMiles: req.RadiusMiles,
	}
	if req.BusinessID != "" {
		biz := types.ID(req.BusinessID)
		cmd.BusinessID = &biz
	}
	if err := h.couriers.GoOnline(c.Request.Context(), cmd); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "online"})
}

type actorReq struct {
	CourierID string `json:"courier_id"`
}

func (h *CourierHandler) Offline(c *gin.Context) {
	var req actorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.couriers.GoOffline(c.Request.Context(), callerID(c, req.CourierID)); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "offline"})
}

type statusReq struct {
	CourierID string `json:"courier_id"`
	Status    string `json:"status"`
}

func (h *CourierHandler) SetStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.couriers.SetStatus(c.Request.Context(), callerID(c, req.CourierID), courier.Status(req.Status))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": req.Status})
}

type locationReq struct {
	CourierID      string   `json:"courier_id"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	HeadingDegrees *float64 `json:"heading_degrees"`
	SpeedMps       *float64 `json:"speed_mps"`
	RecordedAt     int64    `json:"recorded_at"`
}

// UpdateLocation ingests one GPS sample. Out-of-order samples are dropped
// silently; the client keeps sending and nobody cares about stragglers.
func (h *CourierHandler) UpdateLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	recorded := time.Now()
	if req.RecordedAt > 0 {
		recorded = time.UnixMilli(req.RecordedAt)
	}
	err := h.locations.Publish(c.Request.Context(), callerID(c, req.CourierID), location.Sample{
		Position:       types.Point{Lat: req.Lat, Lng: req.Lng},
		HeadingDegrees: req.HeadingDegrees,
		SpeedMps:       req.SpeedMps,
		RecordedAt:     recorded,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

type postingResp struct {
	JobID         string  `json:"job_id"`
	Source        string  `json:"source"`
	BusinessID    string  `json:"business_id,omitempty"`
	PickupLat     float64 `json:"pickup_lat"`
	PickupLng     float64 `json:"pickup_lng"`
	DropoffLat    float64 `json:"dropoff_lat"`
	DropoffLng    float64 `json:"dropoff_lng"`
	PayoutAmount  int64   `json:"payout_amount"`
	Currency      string  `json:"currency"`
	DistanceMiles float64 `json:"distance_miles"`
}

func toPostingResp(postings []dispatch.Posting) []postingResp {
	out := make([]postingResp, len(postings))
	for i, p := range postings {
		out[i] = postingResp{
			JobID:         string(p.ID),
			Source:        string(p.Source),
			PickupLat:     p.Pickup.Lat,
			PickupLng:     p.Pickup.Lng,
			DropoffLat:    p.Dropoff.Lat,
			DropoffLng:    p.Dropoff.Lng,
			PayoutAmount:  p.Payout.Amount,
			Currency:      p.Payout.Currency,
			DistanceMiles: p.DistanceMiles,
		}
		if p.BusinessID != nil {
			out[i].BusinessID = string(*p.BusinessID)
		}
	}
	return out
}

func (h *CourierHandler) Jobs(c *gin.Context) {
	id := callerID(c, c.Query("courier_id"))
	postings, err := h.board.AvailableJobs(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"jobs": toPostingResp(postings)})
}

// JobsStream pushes board snapshots over SSE until the courier goes offline
// or the client disconnects.
func (h *CourierHandler) JobsStream(c *gin.Context) {
	id := callerID(c, c.Query("courier_id"))
	if _, ok := h.couriers.Get(id); !ok {
		writeServiceError(c, dispatch.ErrOffline)
		return
	}
	feed := h.board.Feed(c.Request.Context(), id)
	c.Stream(func(w io.Writer) bool {
		postings, open := <-feed
		if !open {
			return false
		}
		c.SSEvent("jobs", toPostingResp(postings))
		return true
	})
}

func (h *CourierHandler) Accept(c *gin.Context) {
	var req actorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	jobID := types.ID(c.Param("id"))
	if err := h.board.Accept(c.Request.Context(), callerID(c, req.CourierID), jobID); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"job_id": jobID, "status": "accepted"})
}

// CompleteQuick closes out a quick delivery and frees the courier. Business
// orders release through the order lifecycle instead.
func (h *CourierHandler) CompleteQuick(c *gin.Context) {
	var req actorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.board.CompleteQuick(c.Request.Context(), callerID(c, req.CourierID)); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "completed"})
}

type quickReq struct {
	PickupLat    float64 `json:"pickup_lat"`
	PickupLng    float64 `json:"pickup_lng"`
	DropoffLat   float64 `json:"dropoff_lat"`
	DropoffLng   float64 `json:"dropoff_lng"`
	PayoutAmount int64   `json:"payout_amount"`
	Currency     string  `json:"currency"`
}

func (h *CourierHandler) CreateQuick(c *gin.Context) {
	var req quickReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.board.CreateQuick(c.Request.Context(), dispatch.QuickCommand{
		Pickup:  types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff: types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		Payout:  types.Money{Amount: req.PayoutAmount, Currency: req.Currency},
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"job_id": id})
}
