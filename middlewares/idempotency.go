package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const idempotencyHeader = "x-idempotency-key"

// Idempotency keys are capped at 40 characters by the OB specification.
const maxIdempotencyKeyLen = 40

// RequireIdempotencyKey enforces the x-idempotency-key header on mutating
// endpoints and stashes it in c.Locals("idempotencyKey"). The dedup logic
// itself lives in the services; a missing or empty key never reaches them.
func RequireIdempotencyKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := strings.TrimSpace(c.Get(idempotencyHeader))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "x-idempotency-key header is required",
			})
		}
		if len(key) > maxIdempotencyKeyLen {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "x-idempotency-key too long",
			})
		}

		c.Locals("idempotencyKey", key)
		return c.Next()
	}
}
