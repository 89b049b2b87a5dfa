package database

import (
	"context"
	"errors"

	"obpayments-backend/models"
	"obpayments-backend/services"

	"gorm.io/gorm"
)

// SubmissionStore is the gorm-backed services.SubmissionStore. The primary
// key on payment_submissions.id (== consent id) is the only concurrency
// control the engine has; InsertIfAbsent must never degrade into an upsert.
type SubmissionStore struct {
	db *gorm.DB
}

func NewSubmissionStore(db *gorm.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) FindByID(ctx context.Context, id string) (*models.PaymentSubmission, error) {
	var sub models.PaymentSubmission
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrSubmissionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *SubmissionStore) InsertIfAbsent(ctx context.Context, sub *models.PaymentSubmission) (bool, error) {
	err := s.db.WithContext(ctx).Create(sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
