package messaging

import (
	"context"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/models"
)

// AddReaction records one reaction per (message, user, type) and returns the
// message with every reaction and reactor loaded.
func (s *Service) AddReaction(ctx context.Context, userID string, in AddReactionInput) (*models.Message, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("reaction type %q: %w", in.Type, apperr.ErrInvalid)
	}
	msg, err := s.AuthorizeMessage(ctx, in.MessageID, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindReaction(ctx, msg.ID, userID, in.Type)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%s already reacted %s on message %d: %w", userID, in.Type, msg.ID, apperr.ErrConflict)
	}

	reaction := &models.Reaction{
		MessageID: msg.ID,
		UserID:    userID,
		Type:      in.Type,
		Emoji:     in.Emoji,
	}
	// the unique index catches the race the pre-check cannot
	if err := s.store.CreateReaction(ctx, reaction); err != nil {
		return nil, err
	}
	return s.store.GetMessageByID(ctx, msg.ID)
}

// RemoveReaction deletes only the caller's reaction of the given type.
func (s *Service) RemoveReaction(ctx context.Context, userID string, messageID uint, t models.ReactionType) (*models.Message, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("reaction type %q: %w", t, apperr.ErrInvalid)
	}
	if _, err := s.store.GetMessageByID(ctx, messageID); err != nil {
		return nil, err
	}
	n, err := s.store.DeleteReaction(ctx, messageID, userID, t)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("no %s reaction by %s on message %d: %w", t, userID, messageID, apperr.ErrNotFound)
	}
	return s.store.GetMessageByID(ctx, messageID)
}
