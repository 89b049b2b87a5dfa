package services

import (
	"context"
	"errors"
	"time"

	"obpayments-backend/models"
	"obpayments-backend/utils"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

// ConsentStore is the consent aggregate store. Every operation must present
// the caller's api client id; a mismatch is rejected, never silently
// scoped away.
type ConsentStore interface {
	Get(ctx context.Context, consentID, apiClientID string) (*models.PaymentConsent, error)
	// FindByIdempotencyKey supports consent-creation replay detection.
	FindByIdempotencyKey(ctx context.Context, apiClientID, idempotencyKey string) (*models.PaymentConsent, error)
	// InsertIfAbsent must fail on the (apiClientID, idempotencyKey)
	// uniqueness constraint rather than overwrite.
	InsertIfAbsent(ctx context.Context, c *models.PaymentConsent) (bool, error)
	UpdateStatus(ctx context.Context, consentID, apiClientID string, status models.ConsentStatus) (*models.PaymentConsent, error)
	// Consume marks the consent Consumed. Consuming an already-Consumed
	// consent for the same client is a no-op success; the crash-retry
	// window between submission insert and consumption depends on it.
	Consume(ctx context.Context, consentID, apiClientID string) error
}

// SubmissionStore is the durable payment submission store.
type SubmissionStore interface {
	FindByID(ctx context.Context, id string) (*models.PaymentSubmission, error)
	// InsertIfAbsent must fail (not overwrite) when a record with the same
	// id exists. Under a race between N concurrent first submissions
	// exactly one insert succeeds; the rest observe inserted == false.
	InsertIfAbsent(ctx context.Context, sub *models.PaymentSubmission) (bool, error)
}

// PaymentService is the idempotent payment submission engine: it guarantees
// a payment is submitted at most once per consent, even under concurrent or
// retried requests, and consumes the consent exactly once per first
// submission.
type PaymentService struct {
	consents    ConsentStore
	submissions SubmissionStore
	log         zerolog.Logger
}

func NewPaymentService(consents ConsentStore, submissions SubmissionStore, log zerolog.Logger) *PaymentService {
	return &PaymentService{consents: consents, submissions: submissions, log: log}
}

// SubmissionRequest is a normalized payment submission, already bound and
// validated at the HTTP layer. Payload is the canonical request body that
// gets persisted verbatim and replayed on retries.
type SubmissionRequest struct {
	Type           *PaymentType
	ConsentID      string
	APIClientID    string
	IdempotencyKey string
	OBVersion      utils.OBVersion
	Payload        []byte
	Initiation     *models.Initiation
}

// FindExistingPayment looks up a prior submission for the consent and
// classifies it: no record (proceed with first-time creation), replay
// (same key and payload; the stored record is returned unchanged), or
// conflict. A submission owned by another client is never disclosed.
func (s *PaymentService) FindExistingPayment(ctx context.Context, consentID, apiClientID, idempotencyKey, requestHash string) (*models.PaymentSubmission, error) {
	existing, err := s.submissions.FindByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.APIClientID != apiClientID {
		return nil, ErrSubmissionForbidden
	}
	if existing.IdempotencyKey == idempotencyKey && existing.RequestHash == requestHash {
		return existing, nil
	}
	return nil, ErrIdempotencyConflict
}

// SavePayment persists a submission via insert-if-absent. The returned
// record carries the store-confirmed timestamps.
func (s *PaymentService) SavePayment(ctx context.Context, sub *models.PaymentSubmission) (*models.PaymentSubmission, bool, error) {
	inserted, err := s.submissions.InsertIfAbsent(ctx, sub)
	if err != nil {
		return nil, false, err
	}
	return sub, inserted, nil
}

// CreateOrReplaySubmission runs the full submission flow:
//
//  1. fetch the consent and gate on Authorised status,
//  2. short-circuit replays (no further side effects),
//  3. validate the payment against the consent's initiation,
//  4. insert-if-absent; a lost race is re-read and treated as a replay,
//  5. consume the consent, exactly once, after a genuinely new insert.
//
// The second return value reports whether the result is a replay. A
// transient Consume failure is returned to the caller for request-level
// retry; the retry re-enters at step 2.
func (s *PaymentService) CreateOrReplaySubmission(ctx context.Context, req SubmissionRequest) (*models.PaymentSubmission, bool, error) {
	if models.ConsentTypeOf(req.ConsentID) != req.Type.ConsentPrefix {
		return nil, false, ErrConsentNotFound
	}
	consent, err := s.consents.Get(ctx, req.ConsentID, req.APIClientID)
	if err != nil {
		return nil, false, err
	}
	if consent.Status != models.ConsentAuthorised && consent.Status != models.ConsentConsumed {
		return nil, false, &StatusNotAuthorisedError{Status: consent.Status}
	}

	hash, err := utils.RequestHash(req.Payload)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.FindExistingPayment(ctx, req.ConsentID, req.APIClientID, req.IdempotencyKey, hash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.log.Debug().Str("payment_id", existing.ID).Msg("replaying prior submission")
		return existing, true, nil
	}
	if consent.Status == models.ConsentConsumed {
		// Consumed with no matching submission: the consent was spent and
		// this is not a replay of the request that spent it.
		return nil, false, &StatusNotAuthorisedError{Status: consent.Status}
	}

	consentInit, err := InitiationOf(consent.RequestObj)
	if err != nil {
		return nil, false, err
	}
	if err := req.Type.ValidateAgainstConsent(consentInit, req.Initiation); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	sub := &models.PaymentSubmission{
		ID:             req.ConsentID,
		ConsentID:      req.ConsentID,
		APIClientID:    req.APIClientID,
		IdempotencyKey: req.IdempotencyKey,
		RequestHash:    hash,
		Payment:        datatypes.JSON(req.Payload),
		Status:         models.SubmissionInitiationPending,
		OBVersion:      req.OBVersion.String(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	sub, inserted, err := s.SavePayment(ctx, sub)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Lost the race: another caller's insert won. Re-read and treat
		// the winner as a replay; do not consume the consent twice.
		winner, err := s.FindExistingPayment(ctx, req.ConsentID, req.APIClientID, req.IdempotencyKey, hash)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, ErrIdempotencyConflict
		}
		s.log.Debug().Str("payment_id", winner.ID).Msg("insert lost race, replaying winning submission")
		return winner, true, nil
	}

	if err := s.consents.Consume(ctx, req.ConsentID, req.APIClientID); err != nil {
		// The submission is durable; the caller retries and re-enters as a
		// replay. Consume is idempotent on the store side.
		s.log.Error().Err(err).Str("consent_id", req.ConsentID).Msg("consent consumption failed after submission insert")
		return nil, false, err
	}

	s.log.Info().
		Str("payment_id", sub.ID).
		Str("consent_id", req.ConsentID).
		Str("api_client_id", req.APIClientID).
		Str("ob_version", sub.OBVersion).
		Msg("payment submission created, consent consumed")
	return sub, false, nil
}

// GetSubmission retrieves a submission for the owning client, refusing
// reads from API versions older than the one it was created under.
func (s *PaymentService) GetSubmission(ctx context.Context, id, apiClientID string, requested utils.OBVersion) (*models.PaymentSubmission, error) {
	sub, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.APIClientID != apiClientID {
		return nil, ErrSubmissionForbidden
	}
	created, err := utils.ParseOBVersion(sub.OBVersion)
	if err != nil {
		return nil, err
	}
	if err := CheckVersionAccess(created, requested); err != nil {
		return nil, err
	}
	return sub, nil
}
