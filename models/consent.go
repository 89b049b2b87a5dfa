package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type ConsentStatus string

const (
	ConsentAwaitingAuthorisation ConsentStatus = "AwaitingAuthorisation"
	ConsentAuthorised            ConsentStatus = "Authorised"
	ConsentRejected              ConsentStatus = "Rejected"
	ConsentConsumed              ConsentStatus = "Consumed"
)

// PaymentConsent is the consent aggregate a PISP must obtain before it may
// submit a payment. The ID prefix encodes the payment product the consent
// was created for (see ConsentTypeOf).
type PaymentConsent struct {
	ID          string `json:"consent_id" gorm:"primaryKey;size:128"`
	APIClientID string `json:"-" gorm:"size:64;not null;index;uniqueIndex:idx_consents_client_idem_key,priority:1"`

	Status               ConsentStatus `json:"status" gorm:"type:varchar(32);not null"`
	CreationDateTime     time.Time     `json:"creation_date_time"`
	StatusUpdateDateTime time.Time     `json:"status_update_date_time"`

	// Consent-creation idempotency: one logical create per (client, key).
	IdempotencyKey string `json:"-" gorm:"size:40;not null;uniqueIndex:idx_consents_client_idem_key,priority:2"`
	RequestHash    string `json:"-" gorm:"size:64;not null"`

	// RequestObj is the original consent request payload; immutable once
	// created, as are the charges and exchange rate computed at creation.
	RequestObj              datatypes.JSON `json:"request_obj" gorm:"type:jsonb"`
	Charges                 datatypes.JSON `json:"charges" gorm:"type:jsonb"`
	ExchangeRateInformation datatypes.JSON `json:"exchange_rate_information,omitempty" gorm:"type:jsonb"`
}

func (PaymentConsent) TableName() string { return "payment_consents" }

// CanTransitionTo enforces the monotonic consent lifecycle:
// AwaitingAuthorisation -> Authorised|Rejected, Authorised -> Consumed.
func (c *PaymentConsent) CanTransitionTo(next ConsentStatus) bool {
	switch c.Status {
	case ConsentAwaitingAuthorisation:
		return next == ConsentAuthorised || next == ConsentRejected
	case ConsentAuthorised:
		return next == ConsentConsumed
	default:
		return false
	}
}

// Consent ID prefixes per payment product.
const (
	ConsentPrefixDomestic          = "PDC"
	ConsentPrefixDomesticScheduled = "PDSC"
	ConsentPrefixInternational     = "PIC"
)

// ConsentTypeOf extracts the product prefix from a consent id
// (e.g. "PDC-7f3e..." -> "PDC"). Empty if the id carries no prefix.
func ConsentTypeOf(consentID string) string {
	prefix, _, found := strings.Cut(consentID, "-")
	if !found {
		return ""
	}
	return prefix
}
