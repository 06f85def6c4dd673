package storage

import (
	"context"
	"errors"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/models"

	"gorm.io/gorm"
)

// Storage is the persistent store the messaging core reads and writes.
// Lookups that may legitimately miss (Find*) return (nil, nil); Get* return an
// error wrapping apperr.ErrNotFound.
type Storage interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	SetUserOnline(ctx context.Context, id string, online bool) error

	GetConnectionByID(ctx context.Context, id uint) (*models.Connection, error)
	FindConnectionBetween(ctx context.Context, a, b string) (*models.Connection, error)
	CreateConnection(ctx context.Context, conn *models.Connection) error
	UpdateConnectionStatus(ctx context.Context, id uint, status models.ConnectionStatus) error
	// TransitionConnectionStatus moves the row from one status to another and
	// reports 0 rows when it no longer has status from.
	TransitionConnectionStatus(ctx context.Context, id uint, from, to models.ConnectionStatus) (int64, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)

	CreateConversation(ctx context.Context, participantIDs []string) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error)
	GetConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error)

	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id uint) (*models.Message, error)
	GetMessagesByConnection(ctx context.Context, connectionID uint, offset, limit int) ([]models.Message, error)
	AdvanceMessageStatus(ctx context.Context, id uint, to models.MessageStatus) (int64, error)
	MarkMessageRead(ctx context.Context, id uint) (int64, error)
	MarkConnectionMessagesSeen(ctx context.Context, connectionID uint, readerID string) (int64, error)
	DeleteMessage(ctx context.Context, msg *models.Message) error

	CreateReaction(ctx context.Context, reaction *models.Reaction) error
	FindReaction(ctx context.Context, messageID uint, userID string, t models.ReactionType) (*models.Reaction, error)
	DeleteReaction(ctx context.Context, messageID uint, userID string, t models.ReactionType) (int64, error)
}

// Service implements Storage on PostgreSQL through gorm.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

var _ Storage = (*Service)(nil)

// Migrate creates or updates every table the messaging core owns.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Connection{},
		&models.Conversation{},
		&models.Message{},
		&models.Reaction{},
	)
}

// translate maps gorm sentinel errors onto the apperr taxonomy.
func translate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, apperr.ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}
