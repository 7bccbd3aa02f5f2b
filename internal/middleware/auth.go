package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-intakedb/internal/scope"
	"github.com/localnerve/jam-build-intakedb/internal/services"
	"github.com/localnerve/jam-build-intakedb/internal/types"
)

// actorKey is the fiber Locals key holding the *scope.Actor
const actorKey = "actor"

// Authenticate validates the bearer token and stores the resolved actor
func Authenticate(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return types.UnauthorizedError("Authorization header not found")
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return types.UnauthorizedError("Authorization header must be a Bearer token")
		}

		actor, err := auth.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return types.UnauthorizedError("Invalid token: " + err.Error())
		}

		c.Locals(actorKey, actor)
		return c.Next()
	}
}

// RequireRoles rejects actors whose role is not listed. It must run after Authenticate.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := ActorFrom(c)
		if actor == nil {
			return types.UnauthorizedError("authentication required")
		}
		for _, role := range roles {
			if actor.RoleName() == role {
				return c.Next()
			}
		}
		return types.ForbiddenError("insufficient role")
	}
}

// StaffOnly admits admins and superadmins
func StaffOnly() fiber.Handler {
	return RequireRoles(scope.RoleAdmin, scope.RoleSuperadmin)
}

// SuperadminOnly admits superadmins
func SuperadminOnly() fiber.Handler {
	return RequireRoles(scope.RoleSuperadmin)
}

// ActorFrom returns the authenticated actor, or nil on public routes
func ActorFrom(c *fiber.Ctx) *scope.Actor {
	actor, _ := c.Locals(actorKey).(*scope.Actor)
	return actor
}
