package models

import (
	"time"

	"github.com/lib/pq"
)

// Conversation groups participants and their message history. It is the
// authoritative owner of a Message; the Connection link on a message is kept
// for compatibility with clients that address rooms by connection id.
type Conversation struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ParticipantIDs pq.StringArray `gorm:"type:text[];not null" json:"participantIds"`
	ParticipantKey string         `gorm:"type:text;not null;uniqueIndex" json:"-"`
	LastMessageID  *uint          `gorm:"index" json:"lastMessageId,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"index" json:"updatedAt"`

	// Filled by storage on read; not relations, so the conversations and
	// messages tables do not reference each other.
	LastMessage  *Message `gorm:"-" json:"lastMessage"`
	Participants []User   `gorm:"-" json:"participants"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID.
func (c *Conversation) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(c.ParticipantIDs))
	for _, id := range c.ParticipantIDs {
		if id != userID {
			others = append(others, id)
		}
	}
	return others
}
