package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"obpayments-backend/models"
)

// In-memory stores mirroring the semantics of the gorm-backed ones,
// including the insert-if-absent uniqueness behavior and idempotent
// consumption. Hooks let tests force interleavings.

type memConsentStore struct {
	mu       sync.Mutex
	consents map[string]*models.PaymentConsent

	consumeCalls    int
	failNextConsume bool

	// beforeInsert runs under the lock just before an insert attempt.
	beforeInsert func()
}

func newMemConsentStore() *memConsentStore {
	return &memConsentStore{consents: map[string]*models.PaymentConsent{}}
}

func (s *memConsentStore) put(c *models.PaymentConsent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(c)
}

// putLocked is for beforeInsert hooks, which already hold the lock.
func (s *memConsentStore) putLocked(c *models.PaymentConsent) {
	cp := *c
	s.consents[c.ID] = &cp
}

func (s *memConsentStore) Get(ctx context.Context, consentID, apiClientID string) (*models.PaymentConsent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[consentID]
	if !ok {
		return nil, ErrConsentNotFound
	}
	if c.APIClientID != apiClientID {
		return nil, ErrConsentForbidden
	}
	cp := *c
	return &cp, nil
}

func (s *memConsentStore) FindByIdempotencyKey(ctx context.Context, apiClientID, idempotencyKey string) (*models.PaymentConsent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.consents {
		if c.APIClientID == apiClientID && c.IdempotencyKey == idempotencyKey {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrConsentNotFound
}

func (s *memConsentStore) InsertIfAbsent(ctx context.Context, c *models.PaymentConsent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeInsert != nil {
		hook := s.beforeInsert
		s.beforeInsert = nil
		hook()
	}
	if _, ok := s.consents[c.ID]; ok {
		return false, nil
	}
	for _, existing := range s.consents {
		if existing.APIClientID == c.APIClientID && existing.IdempotencyKey == c.IdempotencyKey {
			return false, nil
		}
	}
	cp := *c
	s.consents[c.ID] = &cp
	return true, nil
}

func (s *memConsentStore) UpdateStatus(ctx context.Context, consentID, apiClientID string, status models.ConsentStatus) (*models.PaymentConsent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[consentID]
	if !ok {
		return nil, ErrConsentNotFound
	}
	if c.APIClientID != apiClientID {
		return nil, ErrConsentForbidden
	}
	if !c.CanTransitionTo(status) {
		return nil, ErrInvalidStateTransition
	}
	c.Status = status
	c.StatusUpdateDateTime = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (s *memConsentStore) Consume(ctx context.Context, consentID, apiClientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumeCalls++
	if s.failNextConsume {
		s.failNextConsume = false
		return errors.New("consent store unavailable")
	}
	c, ok := s.consents[consentID]
	if !ok {
		return ErrConsentNotFound
	}
	if c.APIClientID != apiClientID {
		return ErrConsentForbidden
	}
	switch c.Status {
	case models.ConsentConsumed:
		return nil
	case models.ConsentAuthorised:
		c.Status = models.ConsentConsumed
		c.StatusUpdateDateTime = time.Now().UTC()
		return nil
	default:
		return &StatusNotAuthorisedError{Status: c.Status}
	}
}

func (s *memConsentStore) statusOf(consentID string) models.ConsentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consents[consentID].Status
}

type memSubmissionStore struct {
	mu          sync.Mutex
	submissions map[string]*models.PaymentSubmission

	// beforeInsert runs under the lock just before an insert attempt,
	// e.g. to slip in a competing record and force the lost-race path.
	beforeInsert func()
}

func newMemSubmissionStore() *memSubmissionStore {
	return &memSubmissionStore{submissions: map[string]*models.PaymentSubmission{}}
}

func (s *memSubmissionStore) put(sub *models.PaymentSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(sub)
}

// putLocked is for beforeInsert hooks, which already hold the lock.
func (s *memSubmissionStore) putLocked(sub *models.PaymentSubmission) {
	cp := *sub
	s.submissions[sub.ID] = &cp
}

func (s *memSubmissionStore) FindByID(ctx context.Context, id string) (*models.PaymentSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *memSubmissionStore) InsertIfAbsent(ctx context.Context, sub *models.PaymentSubmission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeInsert != nil {
		hook := s.beforeInsert
		s.beforeInsert = nil
		hook()
	}
	if _, ok := s.submissions[sub.ID]; ok {
		return false, nil
	}
	cp := *sub
	s.submissions[sub.ID] = &cp
	return true, nil
}

func (s *memSubmissionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions)
}
