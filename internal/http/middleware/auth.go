// README: JWT auth middleware and role guards.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sharetray/internal/modules/user"
	"sharetray/internal/types"
)

// Context keys set by RequireAuth.
const (
	CtxActorID   = "actor_id"
	CtxActorRole = "actor_role"
	CtxActorName = "actor_name"
)

type TokenVerifier interface {
	VerifyToken(token string) (*user.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified claims on the gin context.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := verifier.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxActorID, claims.UserID)
		c.Set(CtxActorRole, claims.Role)
		c.Set(CtxActorName, claims.Name)
		c.Next()
	}
}

// RequireRole allows only the given roles past. Must run after RequireAuth.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := ActorRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// ActorID returns the authenticated user id, if any.
func ActorID(c *gin.Context) (types.ID, bool) {
	v, ok := c.Get(CtxActorID)
	if !ok {
		return "", false
	}
	id, ok := v.(types.ID)
	return id, ok
}

// ActorRole returns the authenticated role, if any.
func ActorRole(c *gin.Context) (types.Role, bool) {
	v, ok := c.Get(CtxActorRole)
	if !ok {
		return "", false
	}
	role, ok := v.(types.Role)
	return role, ok
}
