package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/pkg/jwt"
	"github.com/techknowlogia/core/internal/pkg/response"
)

const (
	ContextKeySubject = "auth_subject"
	// AuthCookieName carries the admin token for browser sessions.
	AuthCookieName = "tk-admin-token"
)

// TokenParser validates a bearer token.
type TokenParser interface {
	Parse(token string) (*jwt.Claims, error)
}

// AdminAuth rejects requests that do not carry a valid admin token.
func AdminAuth(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" || p == nil {
			response.Unauthorized(c)
			return
		}
		claims, err := p.Parse(token)
		if err != nil || claims.Role != jwt.RoleAdmin {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}

// CurrentSubject extracts the authenticated subject from context.
func CurrentSubject(c *gin.Context) string {
	v, _ := c.Get(ContextKeySubject)
	id, _ := v.(string)
	return id
}

// IsAuthenticated returns true if the request passed AdminAuth.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentSubject(c) != ""
}

func extractToken(c *gin.Context) string {
	if token := NormalizeToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if raw, err := c.Cookie(AuthCookieName); err == nil {
		return NormalizeToken(raw)
	}
	return ""
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
