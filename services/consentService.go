package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"obpayments-backend/models"
	"obpayments-backend/utils"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

// ErrInvalidStateTransition rejects consent decisions that would move the
// lifecycle backwards; transitions are monotonic.
var ErrInvalidStateTransition = errors.New("consent status transition not allowed")

// ConsentService owns consent creation and the PSU decision leg. Payment
// submission only consumes consents through the ConsentStore; this service
// is what populates them.
type ConsentService struct {
	consents ConsentStore
	log      zerolog.Logger
}

func NewConsentService(consents ConsentStore, log zerolog.Logger) *ConsentService {
	return &ConsentService{consents: consents, log: log}
}

// ConsentRequest is a normalized consent-creation request.
type ConsentRequest struct {
	Type           *PaymentType
	APIClientID    string
	IdempotencyKey string
	Payload        []byte
	Initiation     *models.Initiation
}

type consentRequestObj struct {
	Initiation models.Initiation `json:"initiation"`
}

// InitiationOf extracts the initiation block from a stored consent request
// object.
func InitiationOf(requestObj datatypes.JSON) (*models.Initiation, error) {
	var obj consentRequestObj
	if err := json.Unmarshal(requestObj, &obj); err != nil {
		return nil, fmt.Errorf("malformed consent request object: %w", err)
	}
	return &obj.Initiation, nil
}

// CreateOrReplayConsent creates a consent in AwaitingAuthorisation, or
// replays a prior creation carrying the same idempotency key and payload.
// Charges and exchange-rate information are computed here, once, and are
// immutable afterwards.
func (s *ConsentService) CreateOrReplayConsent(ctx context.Context, req ConsentRequest) (*models.PaymentConsent, bool, error) {
	hash, err := utils.RequestHash(req.Payload)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.consents.FindByIdempotencyKey(ctx, req.APIClientID, req.IdempotencyKey)
	if err != nil && !errors.Is(err, ErrConsentNotFound) {
		return nil, false, err
	}
	if existing != nil {
		// A key reused on another product's endpoint must not replay that
		// product's consent, even with an identical payload.
		if models.ConsentTypeOf(existing.ID) != req.Type.ConsentPrefix || existing.RequestHash != hash {
			return nil, false, ErrIdempotencyConflict
		}
		return existing, true, nil
	}

	if err := req.Type.ValidateInitiation(req.Initiation); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	consent := &models.PaymentConsent{
		ID:                      req.Type.NewConsentID(),
		APIClientID:             req.APIClientID,
		Status:                  models.ConsentAwaitingAuthorisation,
		CreationDateTime:        now,
		StatusUpdateDateTime:    now,
		IdempotencyKey:          req.IdempotencyKey,
		RequestHash:             hash,
		RequestObj:              datatypes.JSON(req.Payload),
		Charges:                 req.Type.ComputeCharges(req.Initiation),
		ExchangeRateInformation: req.Type.ComputeExchangeRate(req.Initiation),
	}

	inserted, err := s.consents.InsertIfAbsent(ctx, consent)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Two concurrent creations with the same key: the unique index on
		// (client, key) let exactly one through. Replay the winner.
		winner, err := s.consents.FindByIdempotencyKey(ctx, req.APIClientID, req.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if models.ConsentTypeOf(winner.ID) != req.Type.ConsentPrefix || winner.RequestHash != hash {
			return nil, false, ErrIdempotencyConflict
		}
		return winner, true, nil
	}

	s.log.Info().
		Str("consent_id", consent.ID).
		Str("api_client_id", req.APIClientID).
		Str("type", req.Type.Code).
		Msg("payment consent created")
	return consent, false, nil
}

// GetConsent fetches a consent for the owning client. Requesting it through
// the wrong product's endpoint is indistinguishable from not-found.
func (s *ConsentService) GetConsent(ctx context.Context, t *PaymentType, consentID, apiClientID string) (*models.PaymentConsent, error) {
	if models.ConsentTypeOf(consentID) != t.ConsentPrefix {
		return nil, ErrConsentNotFound
	}
	return s.consents.Get(ctx, consentID, apiClientID)
}

// Decide records the PSU authorisation outcome. Only
// AwaitingAuthorisation -> Authorised|Rejected is allowed.
func (s *ConsentService) Decide(ctx context.Context, t *PaymentType, consentID, apiClientID string, approve bool) (*models.PaymentConsent, error) {
	consent, err := s.GetConsent(ctx, t, consentID, apiClientID)
	if err != nil {
		return nil, err
	}

	target := models.ConsentAuthorised
	if !approve {
		target = models.ConsentRejected
	}
	if !consent.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, consent.Status, target)
	}

	updated, err := s.consents.UpdateStatus(ctx, consentID, apiClientID, target)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("consent_id", consentID).
		Str("status", string(target)).
		Msg("consent decision recorded")
	return updated, nil
}

// FundsConfirmation reports funds availability for an Authorised consent.
// Any other status is refused with the offending status embedded.
type FundsConfirmation struct {
	FundsAvailable         bool      `json:"funds_available"`
	FundsAvailableDateTime time.Time `json:"funds_available_date_time"`
}

func (s *ConsentService) ConfirmFunds(ctx context.Context, t *PaymentType, consentID, apiClientID string) (*FundsConfirmation, error) {
	consent, err := s.GetConsent(ctx, t, consentID, apiClientID)
	if err != nil {
		return nil, err
	}
	if consent.Status != models.ConsentAuthorised {
		return nil, &StatusNotAuthorisedError{Status: consent.Status}
	}
	return &FundsConfirmation{
		FundsAvailable:         true,
		FundsAvailableDateTime: time.Now().UTC(),
	}, nil
}
