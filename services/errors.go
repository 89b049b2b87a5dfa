package services

import (
	"errors"
	"fmt"

	"obpayments-backend/models"
	"obpayments-backend/utils"
)

// Error kinds surfaced by the submission engine. Callers (the HTTP error
// handler) must map each kind explicitly; none of these are retried
// internally.
var (
	ErrConsentNotFound     = errors.New("consent not found")
	ErrConsentForbidden    = errors.New("consent belongs to another api client")
	ErrSubmissionNotFound  = errors.New("payment submission not found")
	ErrSubmissionForbidden = errors.New("payment submission belongs to another api client")
	ErrClientNotFound      = errors.New("api client not found")

	// ErrIdempotencyConflict: a submission already exists for the consent
	// with an incompatible idempotency key or payload. The client must
	// change its key or payload; never silently resolved.
	ErrIdempotencyConflict = errors.New("payment submission already exists with incompatible data")

	// ErrValidationMismatch: the payment does not repeat the consent's
	// initiation. Distinct from ErrIdempotencyConflict; it indicates a
	// client bug, not a duplicate-request race.
	ErrValidationMismatch = errors.New("payment does not match consent")
)

// StatusNotAuthorisedError rejects an operation that requires an Authorised
// consent; it carries the offending status so the client can re-drive
// authorisation.
type StatusNotAuthorisedError struct {
	Status models.ConsentStatus
}

func (e *StatusNotAuthorisedError) Error() string {
	return fmt.Sprintf("consent status %s is not Authorised", e.Status)
}

// VersionConflictError refuses a read of a resource from an API version
// older than the one it was created under. It carries both versions so
// client tooling can tell "wrong version" from "does not exist".
type VersionConflictError struct {
	Actual    utils.OBVersion
	Requested utils.OBVersion
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("resource created under %s is not accessible from %s", e.Actual, e.Requested)
}
