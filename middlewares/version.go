package middlewares

import (
	"obpayments-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// APIVersion stashes the OB version a route group serves in
// c.Locals("obVersion"). Submissions record it; retrievals check it against
// the resource's creation version.
func APIVersion(v utils.OBVersion) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("obVersion", v)
		return c.Next()
	}
}

// RequestVersion reads the version stashed by APIVersion.
func RequestVersion(c *fiber.Ctx) utils.OBVersion {
	v, _ := c.Locals("obVersion").(utils.OBVersion)
	return v
}
