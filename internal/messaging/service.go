// Package messaging owns the conversation and message state machines. It
// validates requests against the store and returns canonical entities; it
// never talks to sockets.
package messaging

import (
	"encoding/json"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/config"
	"sparkchat/backend/internal/models"
	"sparkchat/backend/internal/storage"
	"strings"

	"go.uber.org/zap"
)

type Service struct {
	store storage.Storage
	log   *zap.Logger
}

func NewService(store storage.Storage, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log.Named("messaging")}
}

// CreateMessageInput is the body of a conversation-first send.
type CreateMessageInput struct {
	Content     string
	ContentType models.ContentType
	Metadata    json.RawMessage
}

type AddReactionInput struct {
	MessageID uint
	Type      models.ReactionType
	Emoji     string
}

// normalizeContent rejects blank bodies and defaults the content type to TEXT.
func normalizeContent(content string, t models.ContentType) (models.ContentType, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("message content is empty: %w", apperr.ErrInvalid)
	}
	if t == "" {
		return models.ContentText, nil
	}
	if !t.Valid() {
		return "", fmt.Errorf("content type %q: %w", t, apperr.ErrInvalid)
	}
	return t, nil
}

// pageWindow turns 1-based page and limit into offset and limit, applying the
// defaults and the upper bound.
func pageWindow(page, limit int) (int, int) {
	if page < 1 {
		page = config.DefaultPage
	}
	if limit < 1 {
		limit = config.DefaultPageLimit
	}
	if limit > config.MaxPageLimit {
		limit = config.MaxPageLimit
	}
	return (page - 1) * limit, limit
}
