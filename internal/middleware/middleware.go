// Package middleware holds the gin middleware of the API.
package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"caidasapi/internal/apperr"
)

// Session and context keys.
const (
	SessionUserID = "userID"
	SessionEmail  = "email"

	RequestIDKey    = "requestID"
	RequestIDHeader = "X-Request-ID"
)

// AuthRequired rejects requests without a logged-in session with a JSON 401.
// A session holding a malformed user id is cleared.
func AuthRequired(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		raw := session.Get(SessionUserID)
		if raw == nil {
			logger.Info("unauthenticated request",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			abortUnauthorized(c)
			return
		}

		userID, ok := raw.(string)
		if !ok || userID == "" {
			logger.Warn("malformed session user id, clearing session",
				zap.String("type", fmt.Sprintf("%T", raw)),
				zap.String("ip", c.ClientIP()),
			)
			session.Clear()
			session.Options(sessions.Options{Path: "/", MaxAge: -1})
			if err := session.Save(); err != nil {
				logger.Error("could not clear session", zap.Error(err))
			}
			abortUnauthorized(c)
			return
		}

		c.Set(SessionUserID, userID)
		if email, ok := session.Get(SessionEmail).(string); ok {
			c.Set(SessionEmail, email)
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    apperr.KindAuth,
			"message": "login required",
		},
	})
}
