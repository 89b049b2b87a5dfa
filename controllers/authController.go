package controllers

import (
	"context"
	"errors"

	"obpayments-backend/middlewares"
	"obpayments-backend/models"
	"obpayments-backend/services"

	"github.com/gofiber/fiber/v2"
)

// ClientStore is what the auth endpoints need from persistence.
type ClientStore interface {
	// InsertIfAbsent must fail on the name uniqueness constraint rather
	// than overwrite; two concurrent registrations of one name yield
	// exactly one client.
	InsertIfAbsent(ctx context.Context, c *models.APIClient) (bool, error)
	FindByID(ctx context.Context, id string) (*models.APIClient, error)
}

// AuthController serves TPP client enrollment and token issuance.
type AuthController struct {
	clients ClientStore
}

func NewAuthController(clients ClientStore) *AuthController {
	return &AuthController{clients: clients}
}

type registerRequest struct {
	Name   string `json:"name" validate:"required,min=3"`
	Secret string `json:"secret" validate:"required,min=16"`
}

// Register enrolls a third-party provider. The secret is stored
// bcrypt-hashed; the generated client id comes back once in the response.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}

	client := models.APIClient{Name: req.Name}
	client.SetSecret(req.Secret)

	inserted, err := ac.clients.InsertIfAbsent(c.UserContext(), &client)
	if err != nil {
		return err
	}
	if !inserted {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "client name already registered",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"client_id": client.ID,
		"name":      client.Name,
	})
}

type tokenRequest struct {
	GrantType    string `json:"grant_type" validate:"required,eq=client_credentials"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// Token exchanges client credentials for a short-lived bearer token.
func (ac *AuthController) Token(c *fiber.Ctx) error {
	var req tokenRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}

	client, err := ac.clients.FindByID(c.UserContext(), req.ClientID)
	if err != nil {
		if errors.Is(err, services.ErrClientNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "invalid client credentials",
			})
		}
		return err
	}

	if err := client.CompareSecret(req.ClientSecret); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "invalid client credentials",
		})
	}

	token, err := middlewares.GenerateJWT(client.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "could not issue token",
		})
	}

	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}
