package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-cartsync/internal/errors"
	"github.com/ikkim/udonggeum-cartsync/internal/middleware"
)

const flushTimeout = 10 * time.Second

type CheckoutController struct {
	sync CartSynchronizer
}

func NewCheckoutController(sync CartSynchronizer) *CheckoutController {
	return &CheckoutController{sync: sync}
}

// PrepareCheckout pushes any pending quantity changes so the backend prices
// the cart the user is looking at
// POST /api/v1/checkout/prepare
func (ctrl *CheckoutController) PrepareCheckout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), flushTimeout)
	defer cancel()

	if err := ctrl.sync.Flush(ctx); err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to flush pending cart writes", err)
		errors.RespondWithInfo(c, errors.ParseError(err))
		return
	}
	c.JSON(http.StatusOK, ctrl.sync.Snapshot())
}

// CompleteCheckout is called once the order is placed. The backend has
// already emptied the cart, so pending quantity writes are dropped rather
// than sent and only local state is reset
// POST /api/v1/checkout/complete
func (ctrl *CheckoutController) CompleteCheckout(c *gin.Context) {
	dropped := ctrl.sync.PendingWrites()
	ctrl.sync.Reset()

	middleware.GetLoggerFromContext(c).Info("Checkout completed, local cart reset", map[string]interface{}{
		"dropped_writes": dropped,
	})
	c.JSON(http.StatusOK, ctrl.sync.Snapshot())
}
