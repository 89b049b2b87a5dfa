package database

import (
	"fmt"

	"obpayments-backend/models"

	"gorm.io/gorm"
)

// Migrate applies (idempotent) schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - Status CHECK constraints for consents and submissions
// - The submission primary key doubles as the dedup key, so no extra
//   uniqueness migration is needed there.
func Migrate() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.APIClient{},
			&models.PaymentConsent{},
			&models.PaymentSubmission{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		checks := []string{
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'payment_consents'::regclass
					  AND conname  = 'chk_payment_consents_status'
				) THEN
					ALTER TABLE payment_consents
					ADD CONSTRAINT chk_payment_consents_status
					CHECK (status IN ('AwaitingAuthorisation','Authorised','Rejected','Consumed'));
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'payment_submissions'::regclass
					  AND conname  = 'chk_payment_submissions_status'
				) THEN
					ALTER TABLE payment_submissions
					ADD CONSTRAINT chk_payment_submissions_status
					CHECK (status IN ('InitiationPending','InitiationCompleted','InitiationFailed'));
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
