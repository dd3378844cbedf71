package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
	"github.com/stallwise/stallwise-orders-service/internal/config"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
	"github.com/stallwise/stallwise-orders-service/internal/service"
)

// Handlers holds all HTTP handlers for the orders service.
type Handlers struct {
	checkout  *service.CheckoutService
	machine   *service.StateMachine
	reconcile *service.ReconcileService
	config    *config.Config
	logger    *logging.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	checkout *service.CheckoutService,
	machine *service.StateMachine,
	reconcile *service.ReconcileService,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		checkout:  checkout,
		machine:   machine,
		reconcile: reconcile,
		config:    cfg,
		logger:    logging.New("handlers"),
	}
}

func handleError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if errors.Is(err, apperrors.ErrInsufficientStock) {
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock"})
		return
	}
	if errors.Is(err, apperrors.ErrPersistenceConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict, retry the request"})
		return
	}
	if errors.Is(err, apperrors.ErrUnsupportedDiscountType) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unsupported discount type"})
		return
	}

	var ve *apperrors.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": ve.Message,
			"field": ve.Field,
		})
		return
	}

	if reason := apperrors.CouponReasonOf(err); reason != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "coupon cannot be applied",
			"reason": string(reason),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
