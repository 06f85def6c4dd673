package handler

import (
	"net/http"
	"sparkchat/backend/internal/config"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetConversations lists the caller's conversations, most recent first.
func (h *Handler) GetConversations(c *gin.Context) {
	id, ok := IdentityFromContext(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	convs, err := h.History.GetConversations(c.Request.Context(), id.ID)
	if err != nil {
		h.log.Warn("list conversations", zap.String("user_id", id.ID), zap.Error(err))
		Fail(c, err)
		return
	}
	Success(c, "Conversations retrieved successfully", convs)
}

// GetMessages pages through a connection's messages.
func (h *Handler) GetMessages(c *gin.Context) {
	id, ok := IdentityFromContext(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "not authenticated")
		return
	}
	connID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || connID == 0 {
		Error(c, http.StatusBadRequest, "invalid connection id")
		return
	}
	page, err := queryInt(c, "page", config.DefaultPage)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid page")
		return
	}
	limit, err := queryInt(c, "limit", config.DefaultPageLimit)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid limit")
		return
	}

	msgs, err := h.History.GetMessages(c.Request.Context(), uint(connID), id.ID, page, limit)
	if err != nil {
		h.log.Debug("list messages", zap.String("user_id", id.ID), zap.Uint64("connection_id", connID), zap.Error(err))
		Fail(c, err)
		return
	}
	Success(c, "Messages retrieved successfully", msgs)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
