package routes

import (
	"github.com/gofiber/fiber/v2"

	"obpayments-backend/controllers"
	"obpayments-backend/middlewares"
	"obpayments-backend/services"
)

// Register wires all HTTP routes. Each supported OB version gets its own
// route group; each payment product gets the same six endpoints, backed by
// the one generic controller pair.
func Register(app *fiber.App, auth *controllers.AuthController, payments *controllers.PaymentController, consents *controllers.ConsentController) {
	// Public client enrollment + token endpoints
	app.Post("/register", auth.Register)
	app.Post("/token", auth.Token)

	ob := app.Group("/open-banking")

	for _, version := range services.SupportedVersions {
		pisp := ob.Group("/" + version.String() + "/pisp")
		pisp.Use(middlewares.APIVersion(version))
		pisp.Use(middlewares.IsAuthenticatedClient())

		for _, t := range services.PaymentTypes {
			// Consents
			pisp.Post("/"+t.ConsentCode, middlewares.RequireIdempotencyKey(), consents.Create(t))
			pisp.Get("/"+t.ConsentCode+"/:consentId", consents.Get(t))
			pisp.Post("/"+t.ConsentCode+"/:consentId/decision", consents.Decide(t))
			pisp.Get("/"+t.ConsentCode+"/:consentId/funds-confirmation", consents.FundsConfirmation(t))

			// Payments
			pisp.Post("/"+t.Code, middlewares.RequireIdempotencyKey(), payments.Create(t))
			pisp.Get("/"+t.Code+"/:paymentId", payments.Get(t))
		}
	}
}
