package controller

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-cartsync/internal/cart"
	"github.com/ikkim/udonggeum-cartsync/internal/errors"
	"github.com/ikkim/udonggeum-cartsync/internal/middleware"
)

// CartSynchronizer is the cart surface the HTTP layer drives.
type CartSynchronizer interface {
	Snapshot() cart.Snapshot
	Load(ctx context.Context, silent bool) error
	AddItem(ctx context.Context, itemID string, quantity int) error
	AddProduct(ctx context.Context, p cart.Product, quantity int) error
	RemoveItem(ctx context.Context, itemID string) error
	SetQuantity(ctx context.Context, itemID string, quantity int) error
	Clear(ctx context.Context) error
	Flush(ctx context.Context) error
	PendingWrites() int
	Reset()
}

var _ CartSynchronizer = (*cart.Synchronizer)(nil)

type CartController struct {
	sync        CartSynchronizer
	signInRoute string
}

func NewCartController(sync CartSynchronizer, signInRoute string) *CartController {
	return &CartController{
		sync:        sync,
		signInRoute: signInRoute,
	}
}

type AddToCartRequest struct {
	ItemID   string        `json:"item_id" binding:"required"`
	Quantity int           `json:"quantity" binding:"required,gt=0"`
	Product  *cart.Product `json:"product"`
}

type UpdateCartRequest struct {
	Quantity *int `json:"quantity" binding:"required,gte=0"`
}

// GetCart returns the local snapshot
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, ctrl.sync.Snapshot())
}

// RefreshCart reloads the cart from the backend
// POST /api/v1/cart/refresh
func (ctrl *CartController) RefreshCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if err := ctrl.sync.Load(c.Request.Context(), false); err != nil {
		log.Warn("Cart refresh interrupted", map[string]interface{}{
			"error": err.Error(),
		})
		ctrl.respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ctrl.sync.Snapshot())
}

// AddToCart adds item to cart
// POST /api/v1/cart/items
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		errors.RespondWithValidationError(c, map[string]string{"body": err.Error()})
		return
	}

	log.Debug("Adding item to cart", map[string]interface{}{
		"item_id":  req.ItemID,
		"quantity": req.Quantity,
		"product":  req.Product != nil,
	})

	var err error
	if req.Product != nil {
		p := *req.Product
		p.ID = req.ItemID
		err = ctrl.sync.AddProduct(c.Request.Context(), p, req.Quantity)
	} else {
		err = ctrl.sync.AddItem(c.Request.Context(), req.ItemID, req.Quantity)
	}
	if err != nil {
		ctrl.respondWithError(c, err)
		return
	}

	log.Info("Item added to cart", map[string]interface{}{
		"item_id":  req.ItemID,
		"quantity": req.Quantity,
	})
	c.JSON(http.StatusOK, ctrl.sync.Snapshot())
}

// UpdateCartItem sets an item's quantity; the backend write is debounced
// PUT /api/v1/cart/items/:id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	itemID := c.Param("id")

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid update cart request", map[string]interface{}{
			"item_id": itemID,
			"error":   err.Error(),
		})
		errors.RespondWithValidationError(c, map[string]string{"quantity": err.Error()})
		return
	}

	if err := ctrl.sync.SetQuantity(c.Request.Context(), itemID, *req.Quantity); err != nil {
		ctrl.respondWithError(c, err)
		return
	}

	status := http.StatusAccepted
	if *req.Quantity < 1 {
		// a zero quantity is an immediate removal, not a scheduled write
		status = http.StatusOK
	}
	c.JSON(status, ctrl.sync.Snapshot())
}

// RemoveFromCart removes an item
// DELETE /api/v1/cart/items/:id
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	itemID := c.Param("id")

	if err := ctrl.sync.RemoveItem(c.Request.Context(), itemID); err != nil {
		ctrl.respondWithError(c, err)
		return
	}

	log.Info("Item removed from cart", map[string]interface{}{
		"item_id": itemID,
	})
	c.JSON(http.StatusOK, ctrl.sync.Snapshot())
}

// ClearCart empties the cart here and on the backend
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	if err := ctrl.sync.Clear(c.Request.Context()); err != nil {
		ctrl.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.sync.Snapshot())
}

func (ctrl *CartController) respondWithError(c *gin.Context, err error) {
	log := middleware.GetLoggerFromContext(c)

	if stderrors.Is(err, cart.ErrUnauthenticated) {
		errors.SignInRequired(c, ctrl.signInRoute)
		return
	}

	info := errors.ParseError(err)
	if info.Status >= http.StatusInternalServerError {
		log.Error("Cart request failed", err, map[string]interface{}{
			"code": info.Code,
		})
	} else {
		log.Warn("Cart request rejected", map[string]interface{}{
			"code":  info.Code,
			"error": err.Error(),
		})
	}
	if info.Action == errors.ActionSignIn {
		errors.SignInRequired(c, ctrl.signInRoute)
		return
	}
	errors.RespondWithInfo(c, info)
}
