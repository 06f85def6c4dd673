package storage

import (
	"context"
	"errors"
	"sparkchat/backend/internal/models"

	"gorm.io/gorm"
)

// CreateMessage inserts msg and moves the conversation's last-message pointer
// in the same transaction.
func (s *Service) CreateMessage(ctx context.Context, msg *models.Message) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message_id": msg.ID,
				"updated_at":      msg.CreatedAt,
			}).Error
	})
	return translate(err, "create message in conversation %d", msg.ConversationID)
}

// GetMessageByID loads the message with its sender and reactions (and the
// reacting users).
func (s *Service) GetMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	err := s.withReactions(s.DB.WithContext(ctx)).
		Preload("Sender").
		First(&msg, id).Error
	if err != nil {
		return nil, translate(err, "message %d", id)
	}
	return &msg, nil
}

func (s *Service) GetMessagesByConnection(ctx context.Context, connectionID uint, offset, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.withReactions(s.DB.WithContext(ctx)).
		Where("connection_id = ?", connectionID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, translate(err, "messages of connection %d", connectionID)
	}
	return msgs, nil
}

// AdvanceMessageStatus moves the status forward to `to` only if the current
// status ranks lower. It returns the number of rows changed, so 0 means the
// message is missing or already at or past `to`.
func (s *Service) AdvanceMessageStatus(ctx context.Context, id uint, to models.MessageStatus) (int64, error) {
	lower := to.Below()
	if len(lower) == 0 {
		return 0, nil
	}
	updates := map[string]interface{}{"status": to}
	if to == models.MessageRead {
		updates["is_read"] = true
	}
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status IN ?", id, lower).
		Updates(updates)
	if res.Error != nil {
		return 0, translate(res.Error, "advance message %d", id)
	}
	return res.RowsAffected, nil
}

// MarkMessageRead sets status READ and is_read in one statement.
func (s *Service) MarkMessageRead(ctx context.Context, id uint) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  models.MessageRead,
			"is_read": true,
		})
	if res.Error != nil {
		return 0, translate(res.Error, "read message %d", id)
	}
	return res.RowsAffected, nil
}

// MarkConnectionMessagesSeen marks every unread message of the connection that
// readerID did not send.
func (s *Service) MarkConnectionMessagesSeen(ctx context.Context, connectionID uint, readerID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("connection_id = ? AND sender_id <> ? AND is_read = ?", connectionID, readerID, false).
		Updates(map[string]interface{}{
			"status":  models.MessageRead,
			"is_read": true,
		})
	if res.Error != nil {
		return 0, translate(res.Error, "mark seen in connection %d", connectionID)
	}
	return res.RowsAffected, nil
}

// DeleteMessage removes msg and its reactions. If msg was the conversation's
// last message the pointer falls back to the newest remaining one.
func (s *Service) DeleteMessage(ctx context.Context, msg *models.Message) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", msg.ID).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Message{}, msg.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var prev models.Message
		var last interface{}
		err := tx.Select("id").
			Where("conversation_id = ?", msg.ConversationID).
			Order("created_at DESC, id DESC").
			First(&prev).Error
		switch {
		case err == nil:
			last = prev.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			last = gorm.Expr("NULL")
		default:
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ? AND last_message_id = ?", msg.ConversationID, msg.ID).
			Update("last_message_id", last).Error
	})
	return translate(err, "delete message %d", msg.ID)
}

func (s *Service) withReactions(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Reactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("reactions.id ASC")
		}).
		Preload("Reactions.User")
}
