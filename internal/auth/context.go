package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/taskhub/task-auth-service/internal/domain"
)

const principalKey = "auth_principal"

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to ctx.
func ContextWithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext extracts the authenticated identity from ctx.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	if ctx == nil {
		return domain.Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*domain.Identity)
	if !ok || v == nil {
		return domain.Identity{}, false
	}
	return *v, true
}

// PrincipalFromContext retrieves the authenticated identity of the request.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Identity)
	return principal, ok && principal != nil
}

func setPrincipal(c *fiber.Ctx, id domain.Identity) {
	c.Locals(principalKey, &id)
	c.SetUserContext(ContextWithIdentity(c.UserContext(), id))
}
