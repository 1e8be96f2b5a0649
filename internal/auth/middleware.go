package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/taskhub/task-auth-service/internal/domain"
)

const bearerPrefix = "Bearer "

// TokenVerifier is the part of the token provider the gate needs.
type TokenVerifier interface {
	Validate(token string) bool
	ExtractClaims(token string) (domain.Identity, error)
}

// AuthMiddleware resolves bearer tokens into a request identity. It never
// rejects a request: anonymous callers continue and are judged by the
// authorization policy.
type AuthMiddleware struct {
	tokens TokenVerifier
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// Handle attaches the identity of a valid bearer token to the request.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return c.Next()
	}
	if !m.tokens.Validate(token) {
		m.logger.Debug("bearer token rejected", zap.String("path", c.Path()))
		return c.Next()
	}
	identity, err := m.tokens.ExtractClaims(token)
	if err != nil {
		m.logger.Debug("bearer token claims unreadable", zap.String("path", c.Path()))
		return c.Next()
	}
	setPrincipal(c, identity)
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	// Copy out of fasthttp's request buffer.
	return strings.Clone(token), true
}
