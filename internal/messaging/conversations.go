package messaging

import (
	"context"
	"errors"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/models"

	"go.uber.org/zap"
)

// CreateConversation returns the conversation of the participant set, creating
// it if needed. Retrying with the same set yields the same conversation.
func (s *Service) CreateConversation(ctx context.Context, participantIDs []string) (*models.Conversation, error) {
	_, set := models.ParticipantKey(participantIDs)
	if len(set) < 2 {
		return nil, fmt.Errorf("conversation needs at least two distinct participants: %w", apperr.ErrInvalid)
	}
	return s.store.CreateConversation(ctx, set)
}

func (s *Service) GetConversation(ctx context.Context, conversationID uint) (*models.Conversation, error) {
	return s.store.GetConversationByID(ctx, conversationID)
}

// GetConversations lists the user's conversations, most recently active first.
func (s *Service) GetConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.store.GetConversationsForUser(ctx, userID)
}

// acceptedConnection loads the connection and checks that sender may post on it.
func (s *Service) acceptedConnection(ctx context.Context, connectionID uint, senderID string) (*models.Connection, error) {
	conn, err := s.store.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.Status != models.ConnectionAccepted || !conn.HasParticipant(senderID) {
		return nil, fmt.Errorf("no accepted connection %d for %s: %w", connectionID, senderID, apperr.ErrNotFound)
	}
	return conn, nil
}

// resolveConnection finds the connection of a conversation pair, creating or
// promoting it to ACCEPTED. A BLOCKED pair is Forbidden.
func (s *Service) resolveConnection(ctx context.Context, senderID, otherID string) (*models.Connection, error) {
	conn, err := s.store.FindConnectionBetween(ctx, senderID, otherID)
	if err != nil {
		return nil, err
	}

	if conn == nil {
		conn = models.NewConnection(senderID, otherID, models.ConnectionAccepted)
		err = s.store.CreateConnection(ctx, conn)
		if err == nil {
			s.log.Info("connection created for conversation",
				zap.Uint("connection_id", conn.ID), zap.String("pair", conn.PairKey))
			return conn, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		// someone else created the row first
		conn, err = s.store.FindConnectionBetween(ctx, senderID, otherID)
		if err != nil {
			return nil, err
		}
		if conn == nil {
			return nil, fmt.Errorf("connection %s vanished after conflict", models.PairKey(senderID, otherID))
		}
	}

	switch conn.Status {
	case models.ConnectionAccepted:
		return conn, nil
	case models.ConnectionBlocked:
		return nil, fmt.Errorf("connection %d is blocked: %w", conn.ID, apperr.ErrForbidden)
	default:
		return s.promoteConnection(ctx, conn)
	}
}

// promoteConnection moves conn to ACCEPTED only from the status it was read
// with, so a block landing in between is never overwritten.
func (s *Service) promoteConnection(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	n, err := s.store.TransitionConnectionStatus(ctx, conn.ID, conn.Status, models.ConnectionAccepted)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		s.log.Info("connection promoted",
			zap.Uint("connection_id", conn.ID), zap.String("from", string(conn.Status)))
		conn.Status = models.ConnectionAccepted
		return conn, nil
	}

	current, err := s.store.GetConnectionByID(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case models.ConnectionAccepted:
		return current, nil
	case models.ConnectionBlocked:
		return nil, fmt.Errorf("connection %d is blocked: %w", conn.ID, apperr.ErrForbidden)
	default:
		return nil, fmt.Errorf("connection %d changed to %s while promoting: %w", conn.ID, current.Status, apperr.ErrConflict)
	}
}
