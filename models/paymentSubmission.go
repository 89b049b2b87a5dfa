package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionInitiationPending   SubmissionStatus = "InitiationPending"
	SubmissionInitiationCompleted SubmissionStatus = "InitiationCompleted"
	SubmissionInitiationFailed    SubmissionStatus = "InitiationFailed"
)

// PaymentSubmission is the durable record of a submitted payment. Its ID
// equals the consent id, which makes the primary key the dedup key: the
// database uniqueness constraint is what turns N concurrent first-time
// submissions into exactly one insert.
//
// Identity and payload fields are immutable after creation; only Status may
// be advanced by downstream execution.
type PaymentSubmission struct {
	ID          string `json:"payment_id" gorm:"primaryKey;size:128"`
	ConsentID   string `json:"consent_id" gorm:"size:128;not null"`
	APIClientID string `json:"-" gorm:"size:64;not null;index"`

	IdempotencyKey string `json:"-" gorm:"size:40;not null"`
	RequestHash    string `json:"-" gorm:"size:64;not null"`

	// Payment is the normalized request payload actually submitted.
	Payment datatypes.JSON `json:"payment" gorm:"type:jsonb"`

	Status SubmissionStatus `json:"status" gorm:"type:varchar(32);not null"`

	// OBVersion is the API version the submission was created under; reads
	// from older versions are refused (see services.CheckVersionAccess).
	OBVersion string `json:"ob_version" gorm:"size:16;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PaymentSubmission) TableName() string { return "payment_submissions" }
