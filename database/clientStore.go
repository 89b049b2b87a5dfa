package database

import (
	"context"
	"errors"

	"obpayments-backend/models"
	"obpayments-backend/services"

	"gorm.io/gorm"
)

// ClientStore is the gorm-backed API client store. Registration goes
// through InsertIfAbsent so name uniqueness is enforced by the unique index,
// not a read-then-write check.
type ClientStore struct {
	db *gorm.DB
}

func NewClientStore(db *gorm.DB) *ClientStore {
	return &ClientStore{db: db}
}

func (s *ClientStore) InsertIfAbsent(ctx context.Context, c *models.APIClient) (bool, error) {
	err := s.db.WithContext(ctx).Create(c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ClientStore) FindByID(ctx context.Context, id string) (*models.APIClient, error) {
	var c models.APIClient
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}
