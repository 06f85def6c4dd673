package messaging

import (
	"context"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/models"

	"gorm.io/datatypes"
)

// SendMessage posts on an ACCEPTED connection the sender belongs to. The
// message lands in the pair's conversation, which is created on first use.
func (s *Service) SendMessage(ctx context.Context, connectionID uint, senderID, content string, contentType models.ContentType) (*models.Message, error) {
	contentType, err := normalizeContent(content, contentType)
	if err != nil {
		return nil, err
	}
	conn, err := s.acceptedConnection(ctx, connectionID, senderID)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.CreateConversation(ctx, []string{conn.RequesterID, conn.ReceiverID})
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		ConnectionID:   conn.ID,
		SenderID:       senderID,
		Content:        content,
		ContentType:    contentType,
		Status:         models.MessageSent,
		Reactions:      []models.Reaction{},
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateMessage posts into an existing conversation. The pair's connection is
// derived from the conversation: created or promoted to ACCEPTED as needed,
// refused when BLOCKED.
func (s *Service) CreateMessage(ctx context.Context, conversationID uint, senderID string, in CreateMessageInput) (*models.Message, error) {
	contentType, err := normalizeContent(in.Content, in.ContentType)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, fmt.Errorf("%s is not in conversation %d: %w", senderID, conversationID, apperr.ErrNotFound)
	}
	others := conv.OtherParticipants(senderID)
	if len(others) == 0 {
		return nil, fmt.Errorf("conversation %d has no other participant: %w", conversationID, apperr.ErrInvalid)
	}

	conn, err := s.resolveConnection(ctx, senderID, others[0])
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		ConnectionID:   conn.ID,
		SenderID:       senderID,
		Content:        in.Content,
		ContentType:    contentType,
		Status:         models.MessageSent,
		Reactions:      []models.Reaction{},
	}
	if len(in.Metadata) > 0 {
		msg.Metadata = datatypes.JSON(in.Metadata)
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkMessagesAsSeen marks the counterpart's unread messages on the
// connection as READ and returns how many changed.
func (s *Service) MarkMessagesAsSeen(ctx context.Context, connectionID uint, userID string) (int64, error) {
	conn, err := s.store.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return 0, err
	}
	if !conn.HasParticipant(userID) {
		return 0, fmt.Errorf("%s is not in connection %d: %w", userID, connectionID, apperr.ErrNotFound)
	}
	return s.store.MarkConnectionMessagesSeen(ctx, connectionID, userID)
}

// UpdateMessageStatus only moves a status forward. Asking for the current
// status is a no-op; asking for a lower one is a Conflict.
func (s *Service) UpdateMessageStatus(ctx context.Context, messageID uint, status models.MessageStatus) (*models.Message, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("status %q: %w", status, apperr.ErrInvalid)
	}
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := checkAdvance(msg, status); err != nil {
		return nil, err
	}
	if msg.Status == status {
		return msg, nil
	}

	n, err := s.store.AdvanceMessageStatus(ctx, messageID, status)
	if err != nil {
		return nil, err
	}
	msg, err = s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// a concurrent writer got there first; only fail if it went further
		if err := checkAdvance(msg, status); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

func checkAdvance(msg *models.Message, to models.MessageStatus) error {
	if to.Rank() < msg.Status.Rank() {
		return fmt.Errorf("message %d is %s, cannot go back to %s: %w", msg.ID, msg.Status, to, apperr.ErrConflict)
	}
	return nil
}

// MarkMessageAsRead sets READ and IsRead together.
func (s *Service) MarkMessageAsRead(ctx context.Context, messageID uint) (*models.Message, error) {
	n, err := s.store.MarkMessageRead(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("message %d: %w", messageID, apperr.ErrNotFound)
	}
	return s.store.GetMessageByID(ctx, messageID)
}

// DeleteMessage lets the sender remove a message along with its reactions.
// The deleted message is returned so callers can address its rooms.
func (s *Service) DeleteMessage(ctx context.Context, messageID uint, userID string) (*models.Message, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, fmt.Errorf("%s did not send message %d: %w", userID, messageID, apperr.ErrForbidden)
	}
	if err := s.store.DeleteMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// AuthorizeMessage returns the message when userID takes part in its
// conversation.
func (s *Service) AuthorizeMessage(ctx context.Context, messageID uint, userID string) (*models.Message, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversationByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("%s is not in conversation %d: %w", userID, conv.ID, apperr.ErrForbidden)
	}
	return msg, nil
}

// GetMessages pages through a connection's history, oldest first.
func (s *Service) GetMessages(ctx context.Context, connectionID uint, userID string, page, limit int) ([]models.Message, error) {
	conn, err := s.store.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.HasParticipant(userID) {
		return nil, fmt.Errorf("%s is not in connection %d: %w", userID, connectionID, apperr.ErrNotFound)
	}
	offset, limit := pageWindow(page, limit)
	return s.store.GetMessagesByConnection(ctx, connectionID, offset, limit)
}
