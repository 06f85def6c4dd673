package handler

import (
	"net/http"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/auth"
	"sparkchat/backend/internal/chathub"
	"sparkchat/backend/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServeWebSocket authenticates the handshake and upgrades it to a chat
// socket. The token comes from ?token= or the Authorization header; a bad
// token is refused before the upgrade.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	token := c.Query(config.TokenQueryParam)
	if token == "" {
		token = auth.BearerToken(c.GetHeader("Authorization"))
	}

	id, err := h.Gateway.Authenticate(c.Request.Context(), token)
	if err != nil {
		h.log.Debug("handshake rejected", zap.String("remote", c.ClientIP()), zap.Error(err))
		Error(c, http.StatusUnauthorized, apperr.Public(err))
		c.Abort()
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.Warn("upgrade failed", zap.String("user_id", id.ID), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(conn, id.ID, h.Gateway, h.log)
	h.Gateway.Attach(c.Request.Context(), client, id)
	client.Run()
}
