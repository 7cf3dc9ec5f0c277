package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courierd/internal/types"
)

// BusinessHandler exposes the admin toggle for a business's courier
// delivery. Order creation registers sources automatically; this endpoint
// exists for enabling ahead of the first order and for disabling a business
// mid-session.
type BusinessHandler struct {
	board BusinessRegistrar
}

func NewBusinessHandler(board BusinessRegistrar) *BusinessHandler {
	return &BusinessHandler{board: board}
}

type courierDeliveryReq struct {
	Enabled bool `json:"enabled"`
}

func (h *BusinessHandler) SetCourierDelivery(c *gin.Context) {
	var req courierDeliveryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	businessID := types.ID(c.Param("id"))
	if businessID == "" {
		writeError(c, http.StatusBadRequest, "missing business id")
		return
	}
	if req.Enabled {
		h.board.AddBusiness(businessID)
	} else {
		h.board.RemoveBusiness(businessID)
	}
	writeJSON(c, http.StatusOK, gin.H{
		"business_id":      businessID,
		"courier_delivery": req.Enabled,
	})
}
