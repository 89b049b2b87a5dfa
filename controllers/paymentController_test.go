package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"obpayments-backend/middlewares"
	"obpayments-backend/models"
	"obpayments-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

// fakeConsentStore mirrors the row-level access rules of the real store:
// lookups distinguish forbidden from not-found, Consume is idempotent.
type fakeConsentStore struct {
	consents map[string]*models.PaymentConsent
}

func (s *fakeConsentStore) Get(_ context.Context, consentID, apiClientID string) (*models.PaymentConsent, error) {
	c, ok := s.consents[consentID]
	if !ok {
		return nil, services.ErrConsentNotFound
	}
	if c.APIClientID != apiClientID {
		return nil, services.ErrConsentForbidden
	}
	cp := *c
	return &cp, nil
}

func (s *fakeConsentStore) FindByIdempotencyKey(_ context.Context, apiClientID, idempotencyKey string) (*models.PaymentConsent, error) {
	for _, c := range s.consents {
		if c.APIClientID == apiClientID && c.IdempotencyKey == idempotencyKey {
			cp := *c
			return &cp, nil
		}
	}
	return nil, services.ErrConsentNotFound
}

func (s *fakeConsentStore) InsertIfAbsent(_ context.Context, c *models.PaymentConsent) (bool, error) {
	if _, ok := s.consents[c.ID]; ok {
		return false, nil
	}
	cp := *c
	s.consents[c.ID] = &cp
	return true, nil
}

func (s *fakeConsentStore) UpdateStatus(_ context.Context, consentID, apiClientID string, status models.ConsentStatus) (*models.PaymentConsent, error) {
	c, err := s.Get(context.Background(), consentID, apiClientID)
	if err != nil {
		return nil, err
	}
	s.consents[consentID].Status = status
	c.Status = status
	return c, nil
}

func (s *fakeConsentStore) Consume(_ context.Context, consentID, apiClientID string) error {
	c, ok := s.consents[consentID]
	if !ok {
		return services.ErrConsentNotFound
	}
	if c.APIClientID != apiClientID {
		return services.ErrConsentForbidden
	}
	if c.Status == models.ConsentConsumed {
		return nil
	}
	c.Status = models.ConsentConsumed
	return nil
}

type fakeSubmissionStore struct {
	submissions map[string]*models.PaymentSubmission
}

func (s *fakeSubmissionStore) FindByID(_ context.Context, id string) (*models.PaymentSubmission, error) {
	sub, ok := s.submissions[id]
	if !ok {
		return nil, services.ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeSubmissionStore) InsertIfAbsent(_ context.Context, sub *models.PaymentSubmission) (bool, error) {
	if _, ok := s.submissions[sub.ID]; ok {
		return false, nil
	}
	cp := *sub
	s.submissions[sub.ID] = &cp
	return true, nil
}

// testClientAuth stands in for the JWT middleware: the client identity comes
// straight from a test header.
func testClientAuth(c *fiber.Ctx) error {
	// Copy the header value: fasthttp reuses the request buffer backing
	// c.Get's string, and the identity outlives the request in the fakes.
	c.Locals("apiClientID", utils.CopyString(c.Get("x-test-client")))
	return c.Next()
}

func newTestApp(consents *fakeConsentStore) *fiber.App {
	submissions := &fakeSubmissionStore{submissions: map[string]*models.PaymentSubmission{}}
	pc := NewPaymentController(services.NewPaymentService(consents, submissions, zerolog.Nop()))

	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler})
	for _, v := range services.SupportedVersions {
		g := app.Group("/open-banking/"+v.String()+"/pisp", middlewares.APIVersion(v), testClientAuth)
		g.Post("/domestic-payments", middlewares.RequireIdempotencyKey(), pc.Create(services.DomesticPayments))
		g.Get("/domestic-payments/:paymentId", pc.Get(services.DomesticPayments))
	}
	return app
}

func authorisedConsent(t *testing.T, clientID string, init models.Initiation) *models.PaymentConsent {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"initiation": init})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	return &models.PaymentConsent{
		ID:                   services.DomesticPayments.NewConsentID(),
		APIClientID:          clientID,
		Status:               models.ConsentAuthorised,
		CreationDateTime:     now,
		StatusUpdateDateTime: now,
		IdempotencyKey:       "consent-key",
		RequestObj:           datatypes.JSON(raw),
	}
}

func testInitiation() models.Initiation {
	return models.Initiation{
		InstructionIdentification: "ANSM023",
		EndToEndIdentification:    "FRESCO.21302.GFX.20",
		InstructedAmount:          models.InstructedAmount{Amount: "165.88", Currency: "GBP"},
		CreditorAccount: models.AccountIdentification{
			SchemeName:     "UK.OBIE.SortCodeAccountNumber",
			Identification: "08080021325677",
			Name:           "ACME Inc",
		},
	}
}

func paymentBody(t *testing.T, consentID string, init models.Initiation) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"data": map[string]any{"consent_id": consentID, "initiation": init},
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func doRequest(t *testing.T, app *fiber.App, method, path, client, idemKey string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if client != "" {
		req.Header.Set("x-test-client", client)
	}
	if idemKey != "" {
		req.Header.Set("x-idempotency-key", idemKey)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp, respBody
}

func TestPaymentEndpointReplayIsByteIdentical(t *testing.T) {
	init := testInitiation()
	consent := authorisedConsent(t, "tpp-a", init)
	consents := &fakeConsentStore{consents: map[string]*models.PaymentConsent{consent.ID: consent}}
	app := newTestApp(consents)

	path := "/open-banking/v3.1.10/pisp/domestic-payments"
	body := paymentBody(t, consent.ID, init)

	resp1, body1 := doRequest(t, app, http.MethodPost, path, "tpp-a", "key-1", body)
	if resp1.StatusCode != http.StatusCreated {
		t.Fatalf("first submission status = %d, body %s", resp1.StatusCode, body1)
	}

	resp2, body2 := doRequest(t, app, http.MethodPost, path, "tpp-a", "key-1", body)
	if resp2.StatusCode != http.StatusCreated {
		t.Fatalf("replay status = %d, body %s", resp2.StatusCode, body2)
	}
	if !bytes.Equal(body1, body2) {
		t.Fatalf("replay body differs:\n%s\n%s", body1, body2)
	}
	if consents.consents[consent.ID].Status != models.ConsentConsumed {
		t.Fatal("consent not consumed after submission")
	}
}

func TestPaymentEndpointIdempotencyConflict(t *testing.T) {
	init := testInitiation()
	consent := authorisedConsent(t, "tpp-a", init)
	consents := &fakeConsentStore{consents: map[string]*models.PaymentConsent{consent.ID: consent}}
	app := newTestApp(consents)

	path := "/open-banking/v3.1.10/pisp/domestic-payments"
	if resp, body := doRequest(t, app, http.MethodPost, path, "tpp-a", "key-1", paymentBody(t, consent.ID, init)); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first submission status = %d, body %s", resp.StatusCode, body)
	}

	changed := init
	changed.InstructedAmount = models.InstructedAmount{Amount: "999.99", Currency: "GBP"}
	resp, body := doRequest(t, app, http.MethodPost, path, "tpp-a", "key-1", paymentBody(t, consent.ID, changed))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("conflict status = %d, body %s", resp.StatusCode, body)
	}
	var parsed struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Code != "UK.OBIE.Idempotency.KeyReuse" {
		t.Fatalf("conflict code = %q, body %s", parsed.Code, body)
	}
}

func TestPaymentEndpointRequiresIdempotencyKey(t *testing.T) {
	init := testInitiation()
	consent := authorisedConsent(t, "tpp-a", init)
	consents := &fakeConsentStore{consents: map[string]*models.PaymentConsent{consent.ID: consent}}
	app := newTestApp(consents)

	resp, body := doRequest(t, app, http.MethodPost,
		"/open-banking/v3.1.10/pisp/domestic-payments", "tpp-a", "", paymentBody(t, consent.ID, init))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	if consents.consents[consent.ID].Status != models.ConsentAuthorised {
		t.Fatal("keyless request reached the engine")
	}
}

func TestPaymentEndpointVersionConflictOnOlderRead(t *testing.T) {
	init := testInitiation()
	consent := authorisedConsent(t, "tpp-a", init)
	consents := &fakeConsentStore{consents: map[string]*models.PaymentConsent{consent.ID: consent}}
	app := newTestApp(consents)

	if resp, body := doRequest(t, app, http.MethodPost,
		"/open-banking/v4.0/pisp/domestic-payments", "tpp-a", "key-1", paymentBody(t, consent.ID, init)); resp.StatusCode != http.StatusCreated {
		t.Fatalf("submission status = %d, body %s", resp.StatusCode, body)
	}

	if resp, body := doRequest(t, app, http.MethodGet,
		"/open-banking/v4.0/pisp/domestic-payments/"+consent.ID, "tpp-a", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("same-version read status = %d, body %s", resp.StatusCode, body)
	}

	resp, body := doRequest(t, app, http.MethodGet,
		"/open-banking/v3.1.10/pisp/domestic-payments/"+consent.ID, "tpp-a", "", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("older-version read status = %d, body %s", resp.StatusCode, body)
	}
	var parsed struct {
		ResourceVersion  string `json:"resource_version"`
		RequestedVersion string `json:"requested_version"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.ResourceVersion != "v4.0" || parsed.RequestedVersion != "v3.1.10" {
		t.Fatalf("conflict body carries (%s, %s)", parsed.ResourceVersion, parsed.RequestedVersion)
	}
}

func TestPaymentEndpointCrossClientIsolation(t *testing.T) {
	init := testInitiation()
	consent := authorisedConsent(t, "tpp-a", init)
	consents := &fakeConsentStore{consents: map[string]*models.PaymentConsent{consent.ID: consent}}
	app := newTestApp(consents)

	path := "/open-banking/v3.1.10/pisp/domestic-payments"
	if resp, body := doRequest(t, app, http.MethodPost, path, "tpp-a", "key-1", paymentBody(t, consent.ID, init)); resp.StatusCode != http.StatusCreated {
		t.Fatalf("submission status = %d, body %s", resp.StatusCode, body)
	}

	if resp, _ := doRequest(t, app, http.MethodPost, path, "tpp-b", "key-1", paymentBody(t, consent.ID, init)); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign submission status = %d, want 403", resp.StatusCode)
	}
	if resp, _ := doRequest(t, app, http.MethodGet, path+"/"+consent.ID, "tpp-b", "", nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign read status = %d, want 403", resp.StatusCode)
	}
}
