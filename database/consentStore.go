package database

import (
	"context"
	"errors"
	"time"

	"obpayments-backend/models"
	"obpayments-backend/services"

	"gorm.io/gorm"
)

// ConsentStore is the gorm-backed services.ConsentStore. Consents are
// looked up by id first and client second so that a client-id mismatch can
// be distinguished from absence.
type ConsentStore struct {
	db *gorm.DB
}

func NewConsentStore(db *gorm.DB) *ConsentStore {
	return &ConsentStore{db: db}
}

func (s *ConsentStore) Get(ctx context.Context, consentID, apiClientID string) (*models.PaymentConsent, error) {
	var c models.PaymentConsent
	if err := s.db.WithContext(ctx).Where("id = ?", consentID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrConsentNotFound
		}
		return nil, err
	}
	if c.APIClientID != apiClientID {
		return nil, services.ErrConsentForbidden
	}
	return &c, nil
}

func (s *ConsentStore) FindByIdempotencyKey(ctx context.Context, apiClientID, idempotencyKey string) (*models.PaymentConsent, error) {
	var c models.PaymentConsent
	err := s.db.WithContext(ctx).
		Where("api_client_id = ? AND idempotency_key = ?", apiClientID, idempotencyKey).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrConsentNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *ConsentStore) InsertIfAbsent(ctx context.Context, c *models.PaymentConsent) (bool, error) {
	err := s.db.WithContext(ctx).Create(c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ConsentStore) UpdateStatus(ctx context.Context, consentID, apiClientID string, status models.ConsentStatus) (*models.PaymentConsent, error) {
	var updated *models.PaymentConsent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.PaymentConsent
		if err := tx.Where("id = ?", consentID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrConsentNotFound
			}
			return err
		}
		if c.APIClientID != apiClientID {
			return services.ErrConsentForbidden
		}
		if !c.CanTransitionTo(status) {
			return services.ErrInvalidStateTransition
		}
		now := time.Now().UTC()
		if err := tx.Model(&c).
			Updates(map[string]any{"status": status, "status_update_date_time": now}).Error; err != nil {
			return err
		}
		c.Status = status
		c.StatusUpdateDateTime = now
		updated = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Consume marks an Authorised consent Consumed. Consuming an
// already-Consumed consent for the same client is a no-op success: a retry
// that crashed between submission insert and consumption must not fail
// here.
func (s *ConsentStore) Consume(ctx context.Context, consentID, apiClientID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.PaymentConsent
		if err := tx.Where("id = ?", consentID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrConsentNotFound
			}
			return err
		}
		if c.APIClientID != apiClientID {
			return services.ErrConsentForbidden
		}
		switch c.Status {
		case models.ConsentConsumed:
			return nil
		case models.ConsentAuthorised:
			return tx.Model(&c).
				Updates(map[string]any{
					"status":                  models.ConsentConsumed,
					"status_update_date_time": time.Now().UTC(),
				}).Error
		default:
			return &services.StatusNotAuthorisedError{Status: c.Status}
		}
	})
}
