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

// PaymentController serves the payment-submission endpoints for every
// payment product. There is one controller; the product differences live in
// the services.PaymentType capability set.
type PaymentController struct {
	payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

type paymentRequestData struct {
	ConsentID  string            `json:"consent_id" validate:"required"`
	Initiation models.Initiation `json:"initiation" validate:"required"`
}

type paymentRequest struct {
	Data paymentRequestData `json:"data" validate:"required"`
}

// Create submits a payment against an Authorised consent. Retries with the
// same idempotency key and payload receive the original response, original
// timestamps included; the consent is consumed exactly once.
func (pc *PaymentController) Create(t *services.PaymentType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req paymentRequest
		if err := middlewares.BindAndValidate(c, &req); err != nil {
			return err
		}

		// Canonical payload: the bound struct, re-marshaled. Unknown
		// fields are dropped before hashing and persistence.
		payload, err := json.Marshal(req.Data)
		if err != nil {
			return err
		}

		apiClientID, _ := c.Locals("apiClientID").(string)
		idempotencyKey, _ := c.Locals("idempotencyKey").(string)
		version := middlewares.RequestVersion(c)

		sub, _, err := pc.payments.CreateOrReplaySubmission(c.UserContext(), services.SubmissionRequest{
			Type:           t,
			ConsentID:      req.Data.ConsentID,
			APIClientID:    apiClientID,
			IdempotencyKey: idempotencyKey,
			OBVersion:      version,
			Payload:        payload,
			Initiation:     &req.Data.Initiation,
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(paymentResponse(t, version, sub))
	}
}

// Get retrieves a payment submission; reads from API versions older than
// the submission's creation version are refused with a conflict.
func (pc *PaymentController) Get(t *services.PaymentType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiClientID, _ := c.Locals("apiClientID").(string)
		version := middlewares.RequestVersion(c)

		sub, err := pc.payments.GetSubmission(c.UserContext(), c.Params("paymentId"), apiClientID, version)
		if err != nil {
			return err
		}

		return c.JSON(paymentResponse(t, version, sub))
	}
}

// paymentResponse is the version-agnostic submission body. Replay responses
// are built from the stored record, so they are identical to the original,
// creation timestamp included.
func paymentResponse(t *services.PaymentType, version utils.OBVersion, sub *models.PaymentSubmission) fiber.Map {
	return fiber.Map{
		"data": fiber.Map{
			"payment_id":              sub.ID,
			"consent_id":              sub.ConsentID,
			"status":                  sub.Status,
			"creation_date_time":      sub.CreatedAt,
			"status_update_date_time": sub.UpdatedAt,
			"payment":                 json.RawMessage(sub.Payment),
		},
		"links": fiber.Map{
			"self": fmt.Sprintf("/open-banking/%s/pisp/%s/%s", version, t.Code, sub.ID),
		},
		"meta": fiber.Map{},
	}
}
