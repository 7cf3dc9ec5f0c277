// Package http wires the module services into the gin router.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"courierd/internal/http/handlers"
	"courierd/internal/http/middleware"
	"courierd/internal/infra"
	"courierd/internal/modules/attention"
	"courierd/internal/modules/courier"
	"courierd/internal/modules/dispatch"
	"courierd/internal/modules/location"
	"courierd/internal/modules/order"
	"courierd/internal/modules/tracking"
)

type RouterDeps struct {
	Orders    *order.Service
	Couriers  *courier.Service
	Locations *location.Service
	Board     *dispatch.Board
	Tracking  *tracking.Service
	Attention *attention.Monitor
	Verifier  infra.TokenVerifier
	Logger    *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Verifier))

	courierHandler := handlers.NewCourierHandler(deps.Couriers, deps.Locations, deps.Board)
	api.POST("/couriers/online", courierHandler.Online)
	api.POST("/couriers/offline", courierHandler.Offline)
	api.POST("/couriers/status", courierHandler.SetStatus)
	api.PUT("/couriers/location", courierHandler.UpdateLocation)
	api.GET("/couriers/jobs", courierHandler.Jobs)
	api.GET("/couriers/jobs/stream", courierHandler.JobsStream)
	api.POST("/couriers/jobs/:id/accept", courierHandler.Accept)
	api.POST("/couriers/quick/complete", courierHandler.CompleteQuick)
	api.POST("/quick", courierHandler.CreateQuick)

	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Board)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/advance", orderHandler.Advance)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)
	api.POST("/orders/:id/verify", orderHandler.Verify)
	api.GET("/orders/:id/events", orderHandler.Events)
	api.POST("/orders/:id/escalate", orderHandler.Escalate)
	api.POST("/webhooks/payment-failed", orderHandler.PaymentFailed)

	businessHandler := handlers.NewBusinessHandler(deps.Board)
	api.POST("/businesses/:id/courier-delivery", businessHandler.SetCourierDelivery)

	trackingHandler := handlers.NewTrackingHandler(deps.Tracking)
	api.GET("/orders/:id/tracking", trackingHandler.Snapshot)
	api.GET("/orders/:id/tracking/stream", trackingHandler.Stream)

	attentionHandler := handlers.NewAttentionHandler(deps.Attention)
	api.GET("/attention", attentionHandler.List)

	return r
}
