package storage

import (
	"context"
	"fmt"
	"sparkchat/backend/internal/apperr"
	"sparkchat/backend/internal/models"
	"time"
)

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user %s", id)
	}
	return &user, nil
}

// GetUsersByIDs loads the users that exist among ids; missing ids are skipped.
func (s *Service) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err, "users")
	}
	return users, nil
}

// SaveUser upserts the user row.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return translate(s.DB.WithContext(ctx).Save(user).Error, "save user %s", user.ID)
}

// SetUserOnline is the only write path for the online flag. It also stamps
// last_active_at.
func (s *Service) SetUserOnline(ctx context.Context, id string, online bool) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online":      online,
			"last_active_at": time.Now(),
		})
	if res.Error != nil {
		return translate(res.Error, "set online %s", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
