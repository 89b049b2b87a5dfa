package middlewares

import (
	"errors"

	"obpayments-backend/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler centralizes error responses. Every error kind the services
// surface maps here explicitly; nothing is retried and nothing is silently
// resolved.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Fiber errors (use their status code + message)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 2) Validation errors (422 + per-field info)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make(map[string]string, len(ve))
		for _, f := range ve {
			out[f.Field()] = f.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 3) Engine error taxonomy
	switch {
	case errors.Is(err, services.ErrConsentNotFound),
		errors.Is(err, services.ErrSubmissionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})

	case errors.Is(err, services.ErrConsentForbidden),
		errors.Is(err, services.ErrSubmissionForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": err.Error()})

	case errors.Is(err, services.ErrIdempotencyConflict):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    "UK.OBIE.Idempotency.KeyReuse",
			"message": err.Error(),
		})

	case errors.Is(err, services.ErrValidationMismatch):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    "UK.OBIE.Resource.ConsentMismatch",
			"message": err.Error(),
		})

	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	var statusErr *services.StatusNotAuthorisedError
	if errors.As(err, &statusErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":           "UK.OBIE.Resource.InvalidConsentStatus",
			"message":        statusErr.Error(),
			"consent_status": statusErr.Status,
		})
	}

	// Version denials are conflicts, not 404s: the resource exists, the
	// requested version just may not see it.
	var versionErr *services.VersionConflictError
	if errors.As(err, &versionErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"code":              "UK.OBIE.Resource.InvalidResourceVersion",
			"message":           versionErr.Error(),
			"resource_version":  versionErr.Actual.String(),
			"requested_version": versionErr.Requested.String(),
		})
	}

	// 4) Unknown errors (500)
	log.Error().Err(err).Str("path", c.Path()).Msg("internal error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
