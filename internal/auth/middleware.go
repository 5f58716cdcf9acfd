package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/models"
)

// CookieName is the cookie the session token travels in.
const CookieName = "token"

const userIDKey = "auth_user_id"

// TokenParser validates a raw session token.
type TokenParser interface {
	Parse(raw string) (Claims, error)
}

// Middleware authenticates every request from the session cookie (or a
// Bearer header as a fallback) and rejects missing, invalid or revoked
// tokens with 401.
func Middleware(tokens TokenParser, blacklist Blacklist, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			abortUnauthorized(c, "authentication required")
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			logger.Debug("Rejected token", zap.Error(err))
			abortUnauthorized(c, "invalid token")
			return
		}

		if blacklist != nil {
			revoked, err := blacklist.IsRevoked(c.Request.Context(), claims.JTI)
			if err != nil {
				// Fail closed: a revocation status that cannot be read
				// counts as revoked.
				logger.Warn("Blacklist check failed", zap.Error(err))
				abortUnauthorized(c, "cannot verify token")
				return
			}
			if revoked {
				abortUnauthorized(c, "token revoked")
				return
			}
		}

		c.Set(userIDKey, claims.UserID)
		c.Set("auth_jti", claims.JTI)
		c.Next()
	}
}

// UserID returns the authenticated user id set by the middleware.
func UserID(c *gin.Context) string {
	id, _ := c.Get(userIDKey)
	s, _ := id.(string)
	return s
}

// JTI returns the current token's id, used by logout to revoke it.
func JTI(c *gin.Context) string {
	v, _ := c.Get("auth_jti")
	s, _ := v.(string)
	return s
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: msg,
	})
}
