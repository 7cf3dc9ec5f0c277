// Package handlers contains the gin HTTP handlers, one file per surface.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"courierd/internal/modules/courier"
	"courierd/internal/modules/dispatch"
	"courierd/internal/modules/order"
	"courierd/internal/modules/tracking"
	"courierd/internal/modules/verification"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinel errors onto HTTP statuses. Anything
// unrecognized is a 500 with no detail leaked.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, courier.ErrBadRequest),
		errors.Is(err, dispatch.ErrBadRequest),
		errors.Is(err, verification.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, dispatch.ErrNotFound),
		errors.Is(err, verification.ErrNotFound),
		errors.Is(err, tracking.ErrNoCourier),
		errors.Is(err, tracking.ErrNoLocation):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrAlreadyClaimed),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrUnverified),
		errors.Is(err, dispatch.ErrAlreadyClaimed),
		errors.Is(err, dispatch.ErrActiveDelivery),
		errors.Is(err, courier.ErrActiveDelivery),
		errors.Is(err, verification.ErrAlreadyVerified),
		errors.Is(err, tracking.ErrNotActive):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrOffline),
		errors.Is(err, courier.ErrOffline):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, dispatch.ErrStaleLocation):
		writeError(c, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, verification.ErrCodeMismatch):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
