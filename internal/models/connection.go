package models

import (
	"sort"
	"strings"
	"time"
)

// ConnectionStatus is the state of the social link between two users.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "PENDING"
	ConnectionAccepted ConnectionStatus = "ACCEPTED"
	ConnectionBlocked  ConnectionStatus = "BLOCKED"
	ConnectionRemoved  ConnectionStatus = "REMOVED"
)

// Connection links a requester and a receiver. Messages can only be exchanged
// over an ACCEPTED connection. PairKey is unique, so a pair of users owns at
// most one row regardless of who asked first.
type Connection struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RequesterID string           `gorm:"type:varchar(36);not null;index" json:"requesterId"`
	ReceiverID  string           `gorm:"type:varchar(36);not null;index" json:"receiverId"`
	PairKey     string           `gorm:"type:varchar(80);not null;uniqueIndex" json:"-"`
	Status      ConnectionStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`

	Requester *User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Receiver  *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// NewConnection builds a connection row with its pair key filled in.
func NewConnection(requesterID, receiverID string, status ConnectionStatus) *Connection {
	return &Connection{
		RequesterID: requesterID,
		ReceiverID:  receiverID,
		PairKey:     PairKey(requesterID, receiverID),
		Status:      status,
	}
}

// PairKey returns the order-independent key of two user ids.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// HasParticipant reports whether userID is one side of the connection.
func (c *Connection) HasParticipant(userID string) bool {
	return userID != "" && (c.RequesterID == userID || c.ReceiverID == userID)
}

// Counterpart returns the other side of the connection, or "" if userID is not
// part of it.
func (c *Connection) Counterpart(userID string) string {
	switch userID {
	case c.RequesterID:
		return c.ReceiverID
	case c.ReceiverID:
		return c.RequesterID
	default:
		return ""
	}
}

// ParticipantKey returns the canonical key for a participant set: sorted,
// de-duplicated ids joined by ':'. The second return value is the sorted set.
func ParticipantKey(ids []string) (string, []string) {
	seen := make(map[string]struct{}, len(ids))
	set := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	sort.Strings(set)
	return strings.Join(set, ":"), set
}
