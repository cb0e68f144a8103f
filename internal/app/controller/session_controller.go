package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-cartsync/internal/errors"
	"github.com/ikkim/udonggeum-cartsync/internal/middleware"
	"github.com/ikkim/udonggeum-cartsync/internal/session"
)

type SessionController struct {
	tokens *session.TokenStore
	guard  *session.Guard
	sync   CartSynchronizer
}

func NewSessionController(tokens *session.TokenStore, guard *session.Guard, sync CartSynchronizer) *SessionController {
	return &SessionController{
		tokens: tokens,
		guard:  guard,
		sync:   sync,
	}
}

type SignInRequest struct {
	Token string `json:"token" binding:"required"`
}

// SignIn stores the token issued by the backend and loads the user's cart
// POST /api/v1/session
func (ctrl *SessionController) SignIn(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationRequired, "토큰이 필요합니다")
		return
	}

	// 만료된 토큰은 저장하지 않음. 기존 세션은 그대로 유지
	if !ctrl.guard.Accepts(req.Token) {
		log.Warn("Rejected expired session token", nil)
		errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenExpired, "로그인이 만료되었습니다")
		return
	}
	ctrl.tokens.Set(req.Token)

	// Guest state is never merged; the signed-in cart replaces it.
	ctrl.sync.Reset()
	if err := ctrl.sync.Load(c.Request.Context(), false); err != nil {
		log.Warn("Cart load after sign-in interrupted", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Session started", map[string]interface{}{
		"subject": ctrl.guard.Subject(),
	})
	c.JSON(http.StatusOK, gin.H{
		"subject": ctrl.guard.Subject(),
		"cart":    ctrl.sync.Snapshot(),
	})
}

// SignOut drops the token and the local cart; the backend cart is kept
// DELETE /api/v1/session
func (ctrl *SessionController) SignOut(c *gin.Context) {
	ctrl.tokens.Clear()
	ctrl.sync.Reset()

	middleware.GetLoggerFromContext(c).Info("Session ended", nil)
	c.JSON(http.StatusOK, gin.H{
		"cart": ctrl.sync.Snapshot(),
	})
}

// GetSession reports whether a session is active
// GET /api/v1/session
func (ctrl *SessionController) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":  ctrl.guard.HasActiveSession(c.Request.Context()),
		"subject": ctrl.guard.Subject(),
	})
}
