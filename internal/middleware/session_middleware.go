package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/udonggeum-cartsync/internal/errors"
)

// TokenSetter receives the bearer token presented by the caller.
type TokenSetter interface {
	Set(token string)
}

type SessionMiddleware struct {
	tokens TokenSetter
}

func NewSessionMiddleware(tokens TokenSetter) *SessionMiddleware {
	return &SessionMiddleware{
		tokens: tokens,
	}
}

// CaptureToken refreshes the stored token from the Authorization header when
// the presentation layer sends one. Requests without a header keep the
// current session; a malformed header is rejected.
func (m *SessionMiddleware) CaptureToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			log.Warn("Invalid authorization header format", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "인증 형식이 올바르지 않습니다")
			c.Abort()
			return
		}

		m.tokens.Set(parts[1])
		log.Debug("Session token captured from request", map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		c.Next()
	}
}
