package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/auth"
	"sparkchat/backend/internal/chathub"
	"sparkchat/backend/internal/messaging"
	"sparkchat/backend/internal/models"
)

type joined struct {
	Room string `json:"room"`
}

// joinConversation joins the legacy room keyed by connection id. Membership
// is not checked here; sending still requires an accepted connection.
func (g *Gateway) joinConversation(c chathub.Client, raw json.RawMessage) (any, error) {
	var p roomPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	room := models.ConnectionRoom(p.ConversationID)
	if !g.hub.Registry.Join(c, room) {
		return nil, fmt.Errorf("socket %s is gone: %w", c.ID(), apperr.ErrNotFound)
	}
	return joined{Room: room}, nil
}

func (g *Gateway) leaveConversation(c chathub.Client, raw json.RawMessage) (any, error) {
	var p roomPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	room := models.ConnectionRoom(p.ConversationID)
	g.hub.Registry.Leave(c, room)
	return joined{Room: room}, nil
}

func (g *Gateway) sendMessage(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p sendMessagePayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	room := models.ConnectionRoom(p.ConnectionID)

	// creation and emission share the room lock so emits follow store order
	unlock := g.roomLocks.Lock(room)
	defer unlock()

	msg, err := g.messenger.SendMessage(ctx, p.ConnectionID, id.ID, p.Content, p.ContentType)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, room, EmitMessageNew, msg)
	g.emit(ctx, room, EmitConversationUpdated, conversationUpdated{
		ConnectionID:   msg.ConnectionID,
		ConversationID: msg.ConversationID,
		LastMessage:    msg,
	})
	return msg, nil
}

func (g *Gateway) activity(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p activityPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	g.emit(ctx, models.ConnectionRoom(p.ConversationID), EmitUserActivity, userActivity{
		UserID:         id.ID,
		ConversationID: p.ConversationID,
		Activity:       p.Activity,
	})
	return nil, nil
}

func (g *Gateway) markSeen(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p roomPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	count, err := g.messenger.MarkMessagesAsSeen(ctx, p.ConversationID, id.ID)
	if err != nil {
		return nil, err
	}
	seen := messageSeen{ConnectionID: p.ConversationID, UserID: id.ID, Count: count}
	g.emit(ctx, models.ConnectionRoom(p.ConversationID), EmitMessageSeen, seen)
	return seen, nil
}

// createConversation checks blocking in both directions before the service is
// asked, since the service has no notion of blocks.
func (g *Gateway) createConversation(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p createConversationPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	if p.ToUserID == id.ID {
		return nil, fmt.Errorf("cannot start a conversation with yourself: %w", apperr.ErrInvalid)
	}
	if err := g.checkNotBlocked(ctx, id.ID, p.ToUserID); err != nil {
		return nil, err
	}

	conv, err := g.messenger.CreateConversation(ctx, []string{id.ID, p.ToUserID})
	if err != nil {
		return nil, err
	}
	g.participants.Add(conv.ID, []string(conv.ParticipantIDs))
	g.emit(ctx, models.UserRoom(p.ToUserID), EmitConversationCreated, conv)
	return conv, nil
}

func (g *Gateway) conversationSendMessage(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p conversationMessagePayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	unlock := g.roomLocks.Lock(models.ConversationRoom(p.ConversationID))
	defer unlock()

	msg, err := g.messenger.CreateMessage(ctx, p.ConversationID, id.ID, messaging.CreateMessageInput{
		Content:     p.Content,
		ContentType: p.ContentType,
		Metadata:    p.Metadata,
	})
	if err != nil {
		return nil, err
	}
	participants, err := g.participantsOf(ctx, p.ConversationID)
	if err != nil {
		return nil, err
	}
	for _, other := range participants {
		if other != id.ID {
			g.emit(ctx, models.UserRoom(other), EmitNewMessage, msg)
		}
	}
	return msg, nil
}

func (g *Gateway) conversationJoin(ctx context.Context, c chathub.Client, id auth.Identity, raw json.RawMessage) (any, error) {
	var p roomPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	participants, err := g.participantsOf(ctx, p.ConversationID)
	if err != nil {
		return nil, err
	}
	member := false
	for _, pid := range participants {
		member = member || pid == id.ID
	}
	if !member {
		return nil, fmt.Errorf("%s is not in conversation %d: %w", id.ID, p.ConversationID, apperr.ErrNotFound)
	}
	for _, other := range participants {
		if other == id.ID {
			continue
		}
		if err := g.checkNotBlocked(ctx, id.ID, other); err != nil {
			return nil, err
		}
	}

	room := models.ConversationRoom(p.ConversationID)
	if !g.hub.Registry.Join(c, room) {
		return nil, fmt.Errorf("socket %s is gone: %w", c.ID(), apperr.ErrNotFound)
	}
	return joined{Room: room}, nil
}

func (g *Gateway) conversationLeave(c chathub.Client, raw json.RawMessage) (any, error) {
	var p roomPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	room := models.ConversationRoom(p.ConversationID)
	g.hub.Registry.Leave(c, room)
	return joined{Room: room}, nil
}

func (g *Gateway) addReaction(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p reactionPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	msg, err := g.messenger.AddReaction(ctx, id.ID, messaging.AddReactionInput{
		MessageID: p.MessageID,
		Type:      p.Type,
		Emoji:     p.Emoji,
	})
	if err != nil {
		return nil, err
	}
	g.emit(ctx, models.ConnectionRoom(msg.ConnectionID), EmitReaction, msg)
	return msg, nil
}

func (g *Gateway) removeReaction(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p reactionPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	msg, err := g.messenger.RemoveReaction(ctx, id.ID, p.MessageID, p.Type)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, models.ConnectionRoom(msg.ConnectionID), EmitReactionRemove, msg)
	return msg, nil
}

func (g *Gateway) updateStatus(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p statusPayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	if _, err := g.messenger.AuthorizeMessage(ctx, p.MessageID, id.ID); err != nil {
		return nil, err
	}
	msg, err := g.messenger.UpdateMessageStatus(ctx, p.MessageID, p.Status)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, models.ConnectionRoom(msg.ConnectionID), EmitMessageStatus, msg)
	return msg, nil
}

func (g *Gateway) markRead(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p messagePayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	if _, err := g.messenger.AuthorizeMessage(ctx, p.MessageID, id.ID); err != nil {
		return nil, err
	}
	msg, err := g.messenger.MarkMessageAsRead(ctx, p.MessageID)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, models.ConnectionRoom(msg.ConnectionID), EmitMessageRead, msg)
	return msg, nil
}

func (g *Gateway) deleteMessage(ctx context.Context, id auth.Identity, raw json.RawMessage) (any, error) {
	var p messagePayload
	if err := decode(g.validate, raw, &p); err != nil {
		return nil, err
	}
	msg, err := g.messenger.DeleteMessage(ctx, p.MessageID, id.ID)
	if err != nil {
		return nil, err
	}
	deleted := messageDeleted{
		MessageID:      msg.ID,
		ConnectionID:   msg.ConnectionID,
		ConversationID: msg.ConversationID,
	}
	g.emit(ctx, models.ConnectionRoom(msg.ConnectionID), EmitMessageDeleted, deleted)
	return deleted, nil
}

func (g *Gateway) checkNotBlocked(ctx context.Context, a, b string) error {
	blocked, err := g.oracle.IsBlocked(ctx, a, b)
	if err != nil {
		return err
	}
	if blocked {
		return fmt.Errorf("%s and %s block each other: %w", a, b, apperr.ErrForbidden)
	}
	return nil
}

// participantsOf returns the participant ids of a conversation. They never
// change after creation, so they are cached.
func (g *Gateway) participantsOf(ctx context.Context, conversationID uint) ([]string, error) {
	if ids, ok := g.participants.Get(conversationID); ok {
		return ids, nil
	}
	conv, err := g.messenger.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := []string(conv.ParticipantIDs)
	g.participants.Add(conversationID, ids)
	return ids, nil
}
