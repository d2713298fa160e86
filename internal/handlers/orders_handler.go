package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/pharmacy-orderflow/internal/auth"
	"github.com/imrishuroy/pharmacy-orderflow/internal/orders"
	"github.com/imrishuroy/pharmacy-orderflow/internal/recommend"
	"github.com/imrishuroy/pharmacy-orderflow/internal/validation"
)

// IdempotencyHeader carries the client's checkout key.
const IdempotencyHeader = "Idempotency-Key"

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Tracker     *orders.Tracker
	Recommender *recommend.Service
	Validator   *validatorv10.Validate
}

// RegisterOrdersRoutes registers the order lifecycle routes.
func RegisterOrdersRoutes(r gin.IRouter, cfg HandlerConfig) {
	v := cfg.Validator
	if v == nil {
		v = validation.New()
	}
	tracker := cfg.Tracker

	r.POST("/orders", func(c *gin.Context) {
		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}
		key := c.GetHeader(IdempotencyHeader)
		if len(key) > 128 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_idempotency_key", "msg": "Idempotency-Key must be at most 128 characters"})
			return
		}

		order, replayed, err := tracker.CreateOrder(c.Request.Context(), auth.ActorFrom(c), req.Input(key))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Location", fmt.Sprintf("/orders/%s", order.OrderID))
		if replayed {
			c.JSON(http.StatusOK, order)
			return
		}
		c.JSON(http.StatusCreated, order)
	})

	r.GET("/orders/:id", func(c *gin.Context) {
		order, err := tracker.GetOrder(c.Request.Context(), auth.ActorFrom(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.PUT("/orders/:id/assign", func(c *gin.Context) {
		var req validation.AssignRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		order, err := tracker.AssignDeliveryPerson(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), req.DeliveryPersonID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.PUT("/orders/:id/status", func(c *gin.Context) {
		var req validation.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		order, err := tracker.UpdateOrderStatus(c.Request.Context(), auth.ActorFrom(c), c.Param("id"), req.Status, req.OTP)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.GET("/delivery/:id/orders", func(c *gin.Context) {
		list, err := tracker.ListForDeliveryPerson(c.Request.Context(), auth.ActorFrom(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	})
}
