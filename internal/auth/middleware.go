package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding the verified *Claims.
const ClaimsKey = "auth.claims"

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireAdmin rejects requests without a valid admin session token.
func RequireAdmin(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		claims, err := m.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if !claims.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrAccessDenied.Error()})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// Subject returns the user id of the session RequireAdmin verified, or ""
// outside the admin routes.
func Subject(c *gin.Context) string {
	if claims, ok := c.Get(ClaimsKey); ok {
		if cl, ok := claims.(*Claims); ok {
			return cl.Subject
		}
	}
	return ""
}
