package models

import "time"

// ReactionType enumerates the reaction kinds a client can send.
type ReactionType string

const (
	ReactionLike   ReactionType = "LIKE"
	ReactionLove   ReactionType = "LOVE"
	ReactionLaugh  ReactionType = "LAUGH"
	ReactionWow    ReactionType = "WOW"
	ReactionSad    ReactionType = "SAD"
	ReactionAngry  ReactionType = "ANGRY"
	ReactionCustom ReactionType = "CUSTOM"
)

func (t ReactionType) Valid() bool {
	switch t {
	case ReactionLike, ReactionLove, ReactionLaugh, ReactionWow, ReactionSad, ReactionAngry, ReactionCustom:
		return true
	}
	return false
}

// Reaction is one user's reaction to one message. The unique index over
// (message_id, user_id, type) lets the store reject a second identical reaction.
type Reaction struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	MessageID uint         `gorm:"not null;uniqueIndex:idx_reaction_triple,priority:1" json:"messageId"`
	UserID    string       `gorm:"type:varchar(36);not null;uniqueIndex:idx_reaction_triple,priority:2" json:"userId"`
	Type      ReactionType `gorm:"type:varchar(16);not null;uniqueIndex:idx_reaction_triple,priority:3" json:"type"`
	Emoji     string       `gorm:"type:text" json:"emoji,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
