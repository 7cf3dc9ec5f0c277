package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"courierd/internal/modules/tracking"
	"courierd/internal/types"
)

type TrackingHandler struct {
	tracking *tracking.Service
}

func NewTrackingHandler(svc *tracking.Service) *TrackingHandler {
	return &TrackingHandler{tracking: svc}
}

type trackingResp struct {
	OrderID        string    `json:"order_id"`
	CourierID      string    `json:"courier_id"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	HeadingDegrees *float64  `json:"heading_degrees,omitempty"`
	Target         string    `json:"target"`
	DistanceMiles  float64   `json:"distance_miles"`
	ETAMinutes     *float64  `json:"eta_minutes,omitempty"`
	Alerts         []float64 `json:"alerts,omitempty"`
	RecordedAt     int64     `json:"recorded_at"`
}

func toTrackingResp(u tracking.Update) trackingResp {
	return trackingResp{
		OrderID:        string(u.OrderID),
		CourierID:      string(u.CourierID),
		Lat:            u.Position.Lat,
		Lng:            u.Position.Lng,
		HeadingDegrees: u.HeadingDegrees,
		Target:         string(u.Target),
		DistanceMiles:  u.DistanceMiles,
		ETAMinutes:     u.ETAMinutes,
		Alerts:         u.Alerts,
		RecordedAt:     u.RecordedAt.UnixMilli(),
	}
}

func (h *TrackingHandler) Snapshot(c *gin.Context) {
	u, err := h.tracking.Snapshot(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTrackingResp(*u))
}

// Stream pushes live tracking updates over SSE until the delivery finishes
// or the client disconnects.
func (h *TrackingHandler) Stream(c *gin.Context) {
	stream, stop, err := h.tracking.Follow(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	defer stop()
	c.Stream(func(w io.Writer) bool {
		u, open := <-stream
		if !open {
			return false
		}
		c.SSEvent("tracking", toTrackingResp(u))
		return true
	})
}
