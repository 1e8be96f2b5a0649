package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/taskhub/task-auth-service/internal/api/dto"
	"github.com/taskhub/task-auth-service/internal/auth"
	"github.com/taskhub/task-auth-service/internal/service"
	apperrors "github.com/taskhub/task-auth-service/pkg/util"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /api/token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apperrors.NewUnauthorized("invalid credentials")
	case errors.Is(err, service.ErrLoginLocked):
		return apperrors.NewTooManyRequests(err.Error())
	case err != nil:
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{Token: token.Value, TokenType: "Bearer", ExpiresAt: token.ExpiresAt},
	})
}
