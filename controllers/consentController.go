package controllers

import (
	"encoding/json"
	"fmt"

	"obpayments-backend/middlewares"
	"obpayments-backend/models"
	"obpayments-backend/services"
	"obpayments-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// ConsentController serves the consent endpoints for every payment product.
type ConsentController struct {
	consents *services.ConsentService
}

func NewConsentController(consents *services.ConsentService) *ConsentController {
	return &ConsentController{consents: consents}
}

type consentRequestData struct {
	Initiation models.Initiation `json:"initiation" validate:"required"`
}

type consentRequest struct {
	Data consentRequestData `json:"data" validate:"required"`
}

// Create creates a payment consent in AwaitingAuthorisation. Creation is
// idempotent per (client, idempotency key); charges and exchange-rate
// information are computed here and frozen.
func (cc *ConsentController) Create(t *services.PaymentType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req consentRequest
		if err := middlewares.BindAndValidate(c, &req); err != nil {
			return err
		}

		payload, err := json.Marshal(req.Data)
		if err != nil {
			return err
		}

		apiClientID, _ := c.Locals("apiClientID").(string)
		idempotencyKey, _ := c.Locals("idempotencyKey").(string)

		consent, _, err := cc.consents.CreateOrReplayConsent(c.UserContext(), services.ConsentRequest{
			Type:           t,
			APIClientID:    apiClientID,
			IdempotencyKey: idempotencyKey,
			Payload:        payload,
			Initiation:     &req.Data.Initiation,
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(consentResponse(t, middlewares.RequestVersion(c), consent))
	}
}

func (cc *ConsentController) Get(t *services.PaymentType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiClientID, _ := c.Locals("apiClientID").(string)

		consent, err := cc.consents.GetConsent(c.UserContext(), t, c.Params("consentId"), apiClientID)
		if err != nil {
			return err
		}

		return c.JSON(consentResponse(t, middlewares.RequestVersion(c), consent))
	}
}

type consentDecision struct {
	Decision string `json:"decision" validate:"required,oneof=Authorise Reject"`
}

// Decide records the PSU authorisation outcome for a consent. In production
// this leg is driven by the authorisation server; the endpoint mirrors it
// for PISP sandboxes and tests.
func (cc *ConsentController) Decide(t *services.PaymentType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req consentDecision
		if err := middlewares.BindAndValidate(c, &req); err != nil {
			return err
		}

		apiClientID, _ := c.Locals("apiClientID").(string)

		consent, err := cc.consents.Decide(c.UserContext(), t, c.Params("consentId"), apiClientID, req.Decision == "Authorise")
		if err != nil {
			return err
		}

		return c.JSON(consentResponse(t, middlewares.RequestVersion(c), consent))
	}
}

// FundsConfirmation reports funds availability for an Authorised consent.
func (cc *ConsentController) FundsConfirmation(t *services.PaymentType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiClientID, _ := c.Locals("apiClientID").(string)

		funds, err := cc.consents.ConfirmFunds(c.UserContext(), t, c.Params("consentId"), apiClientID)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"data": fiber.Map{
				"funds_availability_result": funds,
				"consent_id":                c.Params("consentId"),
			},
		})
	}
}

func consentResponse(t *services.PaymentType, version utils.OBVersion, consent *models.PaymentConsent) fiber.Map {
	data := fiber.Map{
		"consent_id":              consent.ID,
		"status":                  consent.Status,
		"creation_date_time":      consent.CreationDateTime,
		"status_update_date_time": consent.StatusUpdateDateTime,
		"request":                 json.RawMessage(consent.RequestObj),
		"charges":                 json.RawMessage(consent.Charges),
	}
	if len(consent.ExchangeRateInformation) > 0 {
		data["exchange_rate_information"] = json.RawMessage(consent.ExchangeRateInformation)
	}
	return fiber.Map{
		"data": data,
		"links": fiber.Map{
			"self": fmt.Sprintf("/open-banking/%s/pisp/%s/%s", version, t.ConsentCode, consent.ID),
		},
		"meta": fiber.Map{},
	}
}
