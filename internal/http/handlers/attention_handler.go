package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courierd/internal/modules/attention"
)

type AttentionHandler struct {
	monitor *attention.Monitor
}

func NewAttentionHandler(monitor *attention.Monitor) *AttentionHandler {
	return &AttentionHandler{monitor: monitor}
}

type flaggedResp struct {
	OrderID string   `json:"order_id"`
	Status  string   `json:"status"`
	Reasons []string `json:"reasons"`
}

func (h *AttentionHandler) List(c *gin.Context) {
	flagged, err := h.monitor.Scan(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]flaggedResp, len(flagged))
	for i, f := range flagged {
		reasons := make([]string, len(f.Reasons))
		for k, r := range f.Reasons {
			reasons[k] = string(r)
		}
		out[i] = flaggedResp{
			OrderID: string(f.Order.ID),
			Status:  string(f.Order.Status),
			Reasons: reasons,
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": out})
}
