package handler

import (
	"net/http"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

// AuthMiddleware requires a bearer token and stores the resolved identity in
// the gin context.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			Error(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		id, err := h.Resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			h.log.Debug("rejected token", zap.Error(err))
			Error(c, http.StatusUnauthorized, apperr.Public(err))
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Set("userID", id.ID)
		c.Next()
	}
}

// IdentityFromContext returns what AuthMiddleware stored.
func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
