package messaging_test

import (
	"context"
	"sparkchat/backend/internal/models"
	"sparkchat/backend/internal/storage"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) SaveUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStorage) SetUserOnline(ctx context.Context, id string, online bool) error {
	args := m.Called(ctx, id, online)
	return args.Error(0)
}

// Connections
func (m *MockStorage) GetConnectionByID(ctx context.Context, id uint) (*models.Connection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Connection), args.Error(1)
}

func (m *MockStorage) FindConnectionBetween(ctx context.Context, a, b string) (*models.Connection, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Connection), args.Error(1)
}

func (m *MockStorage) CreateConnection(ctx context.Context, conn *models.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockStorage) UpdateConnectionStatus(ctx context.Context, id uint, status models.ConnectionStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockStorage) TransitionConnectionStatus(ctx context.Context, id uint, from, to models.ConnectionStatus) (int64, error) {
	args := m.Called(ctx, id, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

// Conversations
func (m *MockStorage) CreateConversation(ctx context.Context, participantIDs []string) (*models.Conversation, error) {
	args := m.Called(ctx, participantIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStorage) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockStorage) GetConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

// Messages
func (m *MockStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockStorage) GetMessagesByConnection(ctx context.Context, connectionID uint, offset, limit int) ([]models.Message, error) {
	args := m.Called(ctx, connectionID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) AdvanceMessageStatus(ctx context.Context, id uint, to models.MessageStatus) (int64, error) {
	args := m.Called(ctx, id, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) MarkMessageRead(ctx context.Context, id uint) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) MarkConnectionMessagesSeen(ctx context.Context, connectionID uint, readerID string) (int64, error) {
	args := m.Called(ctx, connectionID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) DeleteMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Reactions
func (m *MockStorage) CreateReaction(ctx context.Context, reaction *models.Reaction) error {
	args := m.Called(ctx, reaction)
	return args.Error(0)
}

func (m *MockStorage) FindReaction(ctx context.Context, messageID uint, userID string, t models.ReactionType) (*models.Reaction, error) {
	args := m.Called(ctx, messageID, userID, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reaction), args.Error(1)
}

func (m *MockStorage) DeleteReaction(ctx context.Context, messageID uint, userID string, t models.ReactionType) (int64, error) {
	args := m.Called(ctx, messageID, userID, t)
	return args.Get(0).(int64), args.Error(1)
}
