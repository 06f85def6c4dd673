// Package handler is the HTTP surface of the chat server: the socket upgrade
// endpoint and a few read endpoints that share the socket's credentials.
package handler

import (
	"context"
	"net/http"
	"sparkchat/backend/internal/auth"
	"sparkchat/backend/internal/gateway"
	"sparkchat/backend/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// History is the read side of messaging.Service.
type History interface {
	GetConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	GetMessages(ctx context.Context, connectionID uint, userID string, page, limit int) ([]models.Message, error)
}

type Handler struct {
	Gateway  *gateway.Gateway
	History  History
	Resolver auth.Resolver

	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler wires the HTTP handlers. origin is the allowed browser origin,
// "*" allows any.
func NewHandler(gw *gateway.Gateway, history History, resolver auth.Resolver, origin string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Gateway:  gw,
		History:  history,
		Resolver: resolver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(origin),
		},
		log: log.Named("http"),
	}
}

func checkOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		// non-browser clients send no Origin
		return origin == "" || origin == allowed
	}
}
