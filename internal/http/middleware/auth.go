// Package middleware holds the cross-cutting gin middleware: auth, request
// logging, and panic recovery.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"courierd/internal/infra"
)

const (
	ctxUIDKey  = "auth_uid"
	ctxRoleKey = "auth_role"
)

// Auth verifies the Bearer token and stashes the caller's uid and role claim
// on the context. A nil verifier disables auth entirely, which is the local
// development mode; callers then identify themselves in request bodies.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimPrefix(header, prefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUIDKey, token.UID)
		if role, ok := token.Claims["role"].(string); ok {
			c.Set(ctxRoleKey, role)
		}
		c.Next()
	}
}

// CallerUID returns the authenticated uid, or "" when auth is disabled.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUIDKey)
}

// CallerRole returns the caller's role claim, or "" when absent.
func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRoleKey)
}
