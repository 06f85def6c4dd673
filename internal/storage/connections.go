package storage

import (
	"context"
	"errors"
	"sparkchat/backend/internal/models"

	"gorm.io/gorm"
)

func (s *Service) GetConnectionByID(ctx context.Context, id uint) (*models.Connection, error) {
	var conn models.Connection
	if err := s.DB.WithContext(ctx).First(&conn, id).Error; err != nil {
		return nil, translate(err, "connection %d", id)
	}
	return &conn, nil
}

// FindConnectionBetween returns the single row for the unordered pair, or nil.
func (s *Service) FindConnectionBetween(ctx context.Context, a, b string) (*models.Connection, error) {
	var conn models.Connection
	err := s.DB.WithContext(ctx).Where("pair_key = ?", models.PairKey(a, b)).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "connection %s/%s", a, b)
	}
	return &conn, nil
}

// CreateConnection inserts conn. A second row for the same pair fails with a
// wrapped apperr.ErrConflict.
func (s *Service) CreateConnection(ctx context.Context, conn *models.Connection) error {
	if conn.PairKey == "" {
		conn.PairKey = models.PairKey(conn.RequesterID, conn.ReceiverID)
	}
	return translate(s.DB.WithContext(ctx).Create(conn).Error, "create connection %s", conn.PairKey)
}

func (s *Service) UpdateConnectionStatus(ctx context.Context, id uint, status models.ConnectionStatus) error {
	res := s.DB.WithContext(ctx).Model(&models.Connection{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return translate(res.Error, "update connection %d", id)
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "connection %d", id)
	}
	return nil
}

func (s *Service) TransitionConnectionStatus(ctx context.Context, id uint, from, to models.ConnectionStatus) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Connection{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return 0, translate(res.Error, "connection %d %s -> %s", id, from, to)
	}
	return res.RowsAffected, nil
}

// IsBlocked reports whether either user has blocked the other.
func (s *Service) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Connection{}).
		Where("pair_key = ? AND status = ?", models.PairKey(a, b), models.ConnectionBlocked).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "block check %s/%s", a, b)
	}
	return count > 0, nil
}
