package models

import (
	"encoding/json"
	"strconv"
)

// InboundFrame is what a client writes to the socket.
type InboundFrame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"` // ack correlation id, echoed back
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is what the server writes to the socket: either an ack for an
// inbound frame or an emission to a room.
type OutboundFrame struct {
	Event string `json:"event"`
	ID    string `json:"id,omitempty"`
	Room  string `json:"room,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Ack is the structured result every fallible handler returns.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Presence is broadcast when a user's first socket connects or last socket
// disconnects.
type Presence struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// ConnectionRoom is the legacy room addressed by connection id.
func ConnectionRoom(connectionID uint) string {
	return "conversation:" + strconv.FormatUint(uint64(connectionID), 10)
}

// ConversationRoom is the room joined through the participant-checked path.
func ConversationRoom(conversationID uint) string {
	return "chat:" + strconv.FormatUint(uint64(conversationID), 10)
}

// UserRoom is the personal room of a user; every socket of the user joins it.
func UserRoom(userID string) string {
	return "user:" + userID
}
