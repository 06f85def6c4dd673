package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/models"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EventName is an inbound event. Dispatch switches over these constants.
type EventName string

const (
	EventJoinConversation        EventName = "joinConversation"
	EventLeaveConversation       EventName = "leaveConversation"
	EventSendMessage             EventName = "sendMessage"
	EventActivity                EventName = "activity"
	EventMarkSeen                EventName = "markSeen"
	EventCreateConversation      EventName = "createConversation"
	EventConversationSendMessage EventName = "conversation:sendMessage"
	EventConversationJoin        EventName = "conversation:join"
	EventConversationLeave       EventName = "conversation:leave"
	EventReactionAdd             EventName = "message.reaction.add"
	EventReactionRemove          EventName = "message.reaction.remove"
	EventMessageStatus           EventName = "message.status"
	EventMessageRead             EventName = "message.read"
	EventMessageDelete           EventName = "message.delete"
)

// Outbound event names.
const (
	EmitAck                 = "ack"
	EmitMessageNew          = "message:new"
	EmitConversationUpdated = "conversation:updated"
	EmitUserActivity        = "user:activity"
	EmitMessageSeen         = "message:seen"
	EmitConversationCreated = "conversationCreated"
	EmitNewMessage          = "newMessage"
	EmitReaction            = "message.reaction"
	EmitReactionRemove      = "message.reaction.remove"
	EmitMessageStatus       = "message.status"
	EmitMessageRead         = "message.read"
	EmitMessageDeleted      = "message.deleted"
	EmitPresence            = "user:presence"
)

type roomPayload struct {
	ConversationID uint `json:"conversationId" validate:"required"`
}

type sendMessagePayload struct {
	ConnectionID uint               `json:"connectionId" validate:"required"`
	Content      string             `json:"content" validate:"required"`
	ContentType  models.ContentType `json:"contentType"`
}

type activityPayload struct {
	ConversationID uint   `json:"conversationId" validate:"required"`
	Activity       string `json:"activity" validate:"required,oneof=typing idle"`
}

type createConversationPayload struct {
	ToUserID string `json:"toUserId" validate:"required"`
}

type conversationMessagePayload struct {
	ConversationID uint               `json:"conversationId" validate:"required"`
	Content        string             `json:"content" validate:"required"`
	ContentType    models.ContentType `json:"contentType"`
	Metadata       json.RawMessage    `json:"metadata,omitempty"`
}

type reactionPayload struct {
	MessageID uint                `json:"messageId" validate:"required"`
	Type      models.ReactionType `json:"type" validate:"required"`
	Emoji     string              `json:"emoji" validate:"omitempty,max=64"`
}

type statusPayload struct {
	MessageID uint                 `json:"messageId" validate:"required"`
	Status    models.MessageStatus `json:"status" validate:"required"`
}

type messagePayload struct {
	MessageID uint `json:"messageId" validate:"required"`
}

// Emission bodies that are not plain entities.

type conversationUpdated struct {
	ConnectionID   uint            `json:"connectionId"`
	ConversationID uint            `json:"conversationId"`
	LastMessage    *models.Message `json:"lastMessage"`
}

type userActivity struct {
	UserID         string `json:"userId"`
	ConversationID uint   `json:"conversationId"`
	Activity       string `json:"activity"`
}

type messageSeen struct {
	ConnectionID uint   `json:"connectionId"`
	UserID       string `json:"userId"`
	Count        int64  `json:"count"`
}

type messageDeleted struct {
	MessageID      uint `json:"messageId"`
	ConnectionID   uint `json:"connectionId"`
	ConversationID uint `json:"conversationId"`
}

// decode unmarshals raw into v and runs the struct's validation tags.
func decode(validate *validator.Validate, raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed payload: %v: %w", err, apperr.ErrInvalid)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%s: %w", formatValidationError(err), apperr.ErrInvalid)
	}
	return nil
}

func formatValidationError(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", e.Field(), e.Tag(), e.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s is %s", e.Field(), e.Tag()))
	}
	return strings.Join(msgs, ", ")
}
