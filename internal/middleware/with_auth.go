package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/fortress-api/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny     = "any"
	AuthRoleStudent = "student"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with authentication and role guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser || role != AuthRoleAny

	return func(c *fiber.Ctx) error {
		if requireUser && c.Locals("user_id") == nil {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "unauthorized", "authentication required")
		}
		if role != AuthRoleAny && normalizeRoleValue(c.Locals("user_role")) != role {
			return utils.SendErrorWithCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions")
		}

		return handler(c)
	}
}
