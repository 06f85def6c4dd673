// Package storagetest provides an in-memory storage.Storage for tests that
// need real store semantics (unique pairs, reaction triples, last-message
// pointers) without PostgreSQL.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/models"
	"sparkchat/backend/internal/storage"
	"sync"
	"time"

	"github.com/lib/pq"
)

type Store struct {
	mu            sync.Mutex
	users         map[string]models.User
	connections   map[uint]*models.Connection
	conversations map[uint]*models.Conversation
	messages      map[uint]*models.Message
	reactions     map[uint]*models.Reaction
	seq           uint
	clock         time.Time
}

var _ storage.Storage = (*Store)(nil)

func New() *Store {
	return &Store{
		users:         make(map[string]models.User),
		connections:   make(map[uint]*models.Connection),
		conversations: make(map[uint]*models.Conversation),
		messages:      make(map[uint]*models.Message),
		reactions:     make(map[uint]*models.Reaction),
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *Store) nextID() uint {
	s.seq++
	return s.seq
}

// now advances a fake clock so creation order is strict.
func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func notFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, apperr.ErrNotFound)...)
}

// Seeding helpers

func (s *Store) AddUser(id, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = models.User{ID: id, Username: username, DisplayName: username}
}

// AddConnection stores a connection with a fixed id.
func (s *Store) AddConnection(id uint, requester, receiver string, status models.ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.NewConnection(requester, receiver, status)
	c.ID = id
	s.connections[id] = c
	if id > s.seq {
		s.seq = id
	}
}

func (s *Store) User(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) ConversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Users

func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user %s", id)
	}
	return &u, nil
}

func (s *Store) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) SaveUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *Store) SetUserOnline(_ context.Context, id string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound("user %s", id)
	}
	now := s.now()
	u.IsOnline = online
	u.LastActiveAt = &now
	s.users[id] = u
	return nil
}

// Connections

func (s *Store) GetConnectionByID(_ context.Context, id uint) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[id]
	if !ok {
		return nil, notFound("connection %d", id)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) findPair(key string) *models.Connection {
	for _, c := range s.connections {
		if c.PairKey == key {
			return c
		}
	}
	return nil
}

func (s *Store) FindConnectionBetween(_ context.Context, a, b string) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findPair(models.PairKey(a, b))
	if c == nil {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) CreateConnection(_ context.Context, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn.PairKey == "" {
		conn.PairKey = models.PairKey(conn.RequesterID, conn.ReceiverID)
	}
	if s.findPair(conn.PairKey) != nil {
		return fmt.Errorf("create connection %s: %w", conn.PairKey, apperr.ErrConflict)
	}
	conn.ID = s.nextID()
	conn.CreatedAt = s.now()
	conn.UpdatedAt = conn.CreatedAt
	cp := *conn
	s.connections[conn.ID] = &cp
	return nil
}

func (s *Store) UpdateConnectionStatus(_ context.Context, id uint, status models.ConnectionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[id]
	if !ok {
		return notFound("connection %d", id)
	}
	c.Status = status
	c.UpdatedAt = s.now()
	return nil
}

func (s *Store) TransitionConnectionStatus(_ context.Context, id uint, from, to models.ConnectionStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[id]
	if !ok || c.Status != from {
		return 0, nil
	}
	c.Status = to
	c.UpdatedAt = s.now()
	return 1, nil
}

func (s *Store) IsBlocked(_ context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findPair(models.PairKey(a, b))
	return c != nil && c.Status == models.ConnectionBlocked, nil
}

// Conversations

func (s *Store) CreateConversation(_ context.Context, participantIDs []string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, set := models.ParticipantKey(participantIDs)
	if len(set) < 2 {
		return nil, fmt.Errorf("conversation needs two participants: %w", apperr.ErrInvalid)
	}
	for _, c := range s.conversations {
		if c.ParticipantKey == key {
			return s.hydrate(c), nil
		}
	}
	now := s.now()
	c := &models.Conversation{
		ID:             s.nextID(),
		ParticipantIDs: pq.StringArray(set),
		ParticipantKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.conversations[c.ID] = c
	return s.hydrate(c), nil
}

func (s *Store) GetConversationByID(_ context.Context, id uint) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, notFound("conversation %d", id)
	}
	return s.hydrate(c), nil
}

func (s *Store) GetConversationsForUser(_ context.Context, userID string) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Conversation{}
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *s.hydrate(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) hydrate(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.ParticipantIDs = append(pq.StringArray(nil), c.ParticipantIDs...)
	cp.Participants = make([]models.User, 0, len(c.ParticipantIDs))
	for _, id := range c.ParticipantIDs {
		if u, ok := s.users[id]; ok {
			cp.Participants = append(cp.Participants, u)
		}
	}
	cp.LastMessage = nil
	if c.LastMessageID != nil {
		if m, ok := s.messages[*c.LastMessageID]; ok {
			cp.LastMessage = s.copyMessage(m)
		}
	}
	return &cp
}

// Messages

func (s *Store) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return notFound("conversation %d", msg.ConversationID)
	}
	msg.ID = s.nextID()
	msg.CreatedAt = s.now()
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	cp.Reactions = nil
	s.messages[msg.ID] = &cp

	id := msg.ID
	conv.LastMessageID = &id
	conv.UpdatedAt = msg.CreatedAt
	return nil
}

func (s *Store) copyMessage(m *models.Message) *models.Message {
	cp := *m
	if u, ok := s.users[m.SenderID]; ok {
		cp.Sender = &u
	}
	cp.Reactions = []models.Reaction{}
	for _, r := range s.reactions {
		if r.MessageID == m.ID {
			rc := *r
			if u, ok := s.users[r.UserID]; ok {
				rc.User = &u
			}
			cp.Reactions = append(cp.Reactions, rc)
		}
	}
	sort.Slice(cp.Reactions, func(i, j int) bool { return cp.Reactions[i].ID < cp.Reactions[j].ID })
	return &cp
}

func (s *Store) GetMessageByID(_ context.Context, id uint) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, notFound("message %d", id)
	}
	return s.copyMessage(m), nil
}

func (s *Store) GetMessagesByConnection(_ context.Context, connectionID uint, offset, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Message
	for _, m := range s.messages {
		if m.ConnectionID == connectionID {
			all = append(all, *s.copyMessage(m))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return []models.Message{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *Store) AdvanceMessageStatus(_ context.Context, id uint, to models.MessageStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.Status.Rank() >= to.Rank() {
		return 0, nil
	}
	m.Status = to
	if to == models.MessageRead {
		m.IsRead = true
	}
	m.UpdatedAt = s.now()
	return 1, nil
}

func (s *Store) MarkMessageRead(_ context.Context, id uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return 0, nil
	}
	m.Status = models.MessageRead
	m.IsRead = true
	m.UpdatedAt = s.now()
	return 1, nil
}

func (s *Store) MarkConnectionMessagesSeen(_ context.Context, connectionID uint, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.ConnectionID == connectionID && m.SenderID != readerID && !m.IsRead {
			m.Status = models.MessageRead
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.ID]; !ok {
		return notFound("message %d", msg.ID)
	}
	for id, r := range s.reactions {
		if r.MessageID == msg.ID {
			delete(s.reactions, id)
		}
	}
	delete(s.messages, msg.ID)

	conv, ok := s.conversations[msg.ConversationID]
	if !ok || conv.LastMessageID == nil || *conv.LastMessageID != msg.ID {
		return nil
	}
	conv.LastMessageID = nil
	for _, m := range s.messages {
		if m.ConversationID == conv.ID && (conv.LastMessageID == nil || m.ID > *conv.LastMessageID) {
			id := m.ID
			conv.LastMessageID = &id
		}
	}
	return nil
}

// Reactions

func (s *Store) CreateReaction(_ context.Context, reaction *models.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reactions {
		if r.MessageID == reaction.MessageID && r.UserID == reaction.UserID && r.Type == reaction.Type {
			return fmt.Errorf("react %s on message %d: %w", reaction.Type, reaction.MessageID, apperr.ErrConflict)
		}
	}
	reaction.ID = s.nextID()
	reaction.CreatedAt = s.now()
	cp := *reaction
	s.reactions[reaction.ID] = &cp
	return nil
}

func (s *Store) FindReaction(_ context.Context, messageID uint, userID string, t models.ReactionType) (*models.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reactions {
		if r.MessageID == messageID && r.UserID == userID && r.Type == t {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) DeleteReaction(_ context.Context, messageID uint, userID string, t models.ReactionType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.reactions {
		if r.MessageID == messageID && r.UserID == userID && r.Type == t {
			delete(s.reactions, id)
			n++
		}
	}
	return n, nil
}
