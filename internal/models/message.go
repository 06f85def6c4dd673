package models

import (
	"time"

	"gorm.io/datatypes"
)

// ContentType describes how a message body should be rendered.
type ContentType string

const (
	ContentText  ContentType = "TEXT"
	ContentEmoji ContentType = "EMOJI"
	ContentGIF   ContentType = "GIF"
	ContentImage ContentType = "IMAGE"
	ContentVideo ContentType = "VIDEO"
	ContentFile  ContentType = "FILE"
	ContentAudio ContentType = "AUDIO"
)

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentText, ContentEmoji, ContentGIF, ContentImage, ContentVideo, ContentFile, ContentAudio:
		return true
	}
	return false
}

// MessageStatus is the delivery state of a message. It only moves forward:
// SENT -> DELIVERED -> READ.
type MessageStatus string

const (
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
)

// Rank orders statuses; unknown statuses rank 0.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	}
	return 0
}

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool { return s.Rank() > 0 }

// Below returns the statuses ranked strictly lower than s.
func (s MessageStatus) Below() []MessageStatus {
	var lower []MessageStatus
	for _, st := range []MessageStatus{MessageSent, MessageDelivered, MessageRead} {
		if st.Rank() < s.Rank() {
			lower = append(lower, st)
		}
	}
	return lower
}

// Message is a single chat message. ConversationID is the owning relation;
// ConnectionID is kept in step with it and addresses the legacy room.
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index:idx_conversation_created,priority:1" json:"conversationId"`
	ConnectionID   uint           `gorm:"not null;index:idx_connection_created,priority:1" json:"connectionId"`
	SenderID       string         `gorm:"type:varchar(36);not null;index" json:"senderId"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	ContentType    ContentType    `gorm:"type:varchar(16);not null;default:'TEXT'" json:"contentType"`
	Status         MessageStatus  `gorm:"type:varchar(16);not null;default:'SENT'" json:"status"`
	IsRead         bool           `gorm:"not null;default:false" json:"isRead"`
	Metadata       datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"index:idx_conversation_created,priority:2;index:idx_connection_created,priority:2" json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`

	Sender    *User      `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Reactions []Reaction `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"reactions"`
}
