package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-cartsync/internal/middleware"
	"github.com/ikkim/udonggeum-cartsync/internal/websocket"
)

type WSController struct {
	hub  *websocket.Hub
	sync CartSynchronizer
}

func NewWSController(hub *websocket.Hub, sync CartSynchronizer) *WSController {
	return &WSController{hub: hub, sync: sync}
}

// Stream pushes every cart snapshot to the connected screen
// GET /api/v1/ws
func (ctrl *WSController) Stream(c *gin.Context) {
	if err := websocket.Serve(ctrl.hub, c.Writer, c.Request, ctrl.sync.Snapshot()); err != nil {
		// Upgrade has already written the HTTP error
		middleware.GetLoggerFromContext(c).Warn("WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
