package dto

import (
	"time"

	"github.com/taskhub/task-auth-service/internal/domain"
)

// LoginRequest payload for POST /api/token.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateUserRequest payload for new accounts.
type CreateUserRequest struct {
	Username string   `json:"username" validate:"required,max=64"`
	Password string   `json:"password" validate:"required,min=6,max=72"`
	Roles    []string `json:"roles" validate:"omitempty,dive,oneof=USER ADMIN"`
}

// UpdateUserRequest payload for account changes. Omitted fields are kept.
type UpdateUserRequest struct {
	Password string   `json:"password" validate:"omitempty,min=6,max=72"`
	Roles    []string `json:"roles" validate:"omitempty,dive,oneof=USER ADMIN"`
}

// UserResponse is the public view of an account. The hash never leaves the service.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Roles:     domain.NormalizeRoles(u.Roles),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
