package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
	"github.com/imrishuroy/pharmacy-orderflow/internal/orders"
)

// writeError maps a domain error to its HTTP status. Messages are meant to
// be shown to the user verbatim, except for persistence failures.
func writeError(c *gin.Context, err error) {
	var (
		ve *orders.ValidationError
		nf *orders.NotFoundError
		te *orders.TransitionError
		pe *orders.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "msg": ve.Error()})
	case errors.Is(err, orders.ErrInvalidOtp):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_otp", "msg": err.Error()})
	case errors.Is(err, orders.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "msg": err.Error()})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "msg": nf.Error()})
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "msg": te.Error()})
	case errors.Is(err, orders.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent_update", "msg": err.Error()})
	case errors.Is(err, orders.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient_stock", "msg": err.Error()})
	case errors.As(err, &pe):
		logger.FromContext(c.Request.Context()).Error("persistence failure", zap.String("op", pe.Op), zap.Error(pe.Err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "persistence_failed", "msg": "could not " + pe.Op + ", please try again"})
	default:
		logger.FromContext(c.Request.Context()).Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "msg": "something went wrong"})
	}
}
