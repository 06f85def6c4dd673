package storage

import (
	"context"
	"errors"
	"sparkchat/backend/internal/models"

	"gorm.io/gorm"
)

// CreateReaction inserts the reaction. The (message, user, type) unique index
// turns a duplicate into a wrapped apperr.ErrConflict.
func (s *Service) CreateReaction(ctx context.Context, reaction *models.Reaction) error {
	return translate(s.DB.WithContext(ctx).Create(reaction).Error,
		"react %s on message %d", reaction.Type, reaction.MessageID)
}

func (s *Service) FindReaction(ctx context.Context, messageID uint, userID string, t models.ReactionType) (*models.Reaction, error) {
	var r models.Reaction
	err := s.DB.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND type = ?", messageID, userID, t).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "reaction on message %d", messageID)
	}
	return &r, nil
}

// DeleteReaction removes only the caller's reaction of that type and reports
// how many rows went away.
func (s *Service) DeleteReaction(ctx context.Context, messageID uint, userID string, t models.ReactionType) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND type = ?", messageID, userID, t).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return 0, translate(res.Error, "unreact on message %d", messageID)
	}
	return res.RowsAffected, nil
}
