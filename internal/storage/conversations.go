package storage

import (
	"context"
	"errors"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/models"

	"gorm.io/gorm"
)

// CreateConversation returns the conversation for the participant set,
// creating it on first use. Two concurrent callers end up with the same row.
func (s *Service) CreateConversation(ctx context.Context, participantIDs []string) (*models.Conversation, error) {
	key, set := models.ParticipantKey(participantIDs)
	if len(set) < 2 {
		return nil, fmt.Errorf("conversation needs two participants: %w", apperr.ErrInvalid)
	}

	db := s.DB.WithContext(ctx)
	conv := models.Conversation{ParticipantIDs: set, ParticipantKey: key}
	err := db.Where("participant_key = ?", key).FirstOrCreate(&conv).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost the insert race, the winner's row is there now
		err = db.Where("participant_key = ?", key).First(&conv).Error
	}
	if err != nil {
		return nil, translate(err, "conversation %s", key)
	}

	convs := []models.Conversation{conv}
	if err := s.hydrate(ctx, convs); err != nil {
		return nil, err
	}
	return &convs[0], nil
}

func (s *Service) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.DB.WithContext(ctx).First(&conv, id).Error; err != nil {
		return nil, translate(err, "conversation %d", id)
	}
	convs := []models.Conversation{conv}
	if err := s.hydrate(ctx, convs); err != nil {
		return nil, err
	}
	return &convs[0], nil
}

// GetConversationsForUser lists the user's conversations, most recently
// active first.
func (s *Service) GetConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.DB.WithContext(ctx).
		Where("? = ANY(participant_ids)", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, translate(err, "conversations of %s", userID)
	}
	if err := s.hydrate(ctx, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// hydrate fills Participants and LastMessage in place with two batched reads.
func (s *Service) hydrate(ctx context.Context, convs []models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}

	userSet := make(map[string]struct{})
	var userIDs []string
	var lastIDs []uint
	for _, c := range convs {
		for _, id := range c.ParticipantIDs {
			if _, ok := userSet[id]; !ok {
				userSet[id] = struct{}{}
				userIDs = append(userIDs, id)
			}
		}
		if c.LastMessageID != nil {
			lastIDs = append(lastIDs, *c.LastMessageID)
		}
	}

	users, err := s.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return err
	}
	byUser := make(map[string]models.User, len(users))
	for _, u := range users {
		byUser[u.ID] = u
	}

	byMessage := make(map[uint]*models.Message, len(lastIDs))
	if len(lastIDs) > 0 {
		var msgs []models.Message
		if err := s.DB.WithContext(ctx).Preload("Sender").Where("id IN ?", lastIDs).Find(&msgs).Error; err != nil {
			return translate(err, "last messages")
		}
		for i := range msgs {
			byMessage[msgs[i].ID] = &msgs[i]
		}
	}

	for i := range convs {
		c := &convs[i]
		c.Participants = make([]models.User, 0, len(c.ParticipantIDs))
		for _, id := range c.ParticipantIDs {
			if u, ok := byUser[id]; ok {
				c.Participants = append(c.Participants, u)
			}
		}
		if c.LastMessageID != nil {
			c.LastMessage = byMessage[*c.LastMessageID]
		}
	}
	return nil
}
