package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/fortress-api/internal/utils"
)

// RequireRole lets the request through only when the authenticated role is one of roles.
// Requests without an identity get 401; a known identity with another role gets 403.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "unauthorized", "authentication required")
		}
		if _, ok := allowed[normalizeRoleValue(c.Locals("user_role"))]; !ok {
			return utils.SendErrorWithCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	var raw string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		raw = v
	case fmt.Stringer:
		raw = v.String()
	default:
		raw = fmt.Sprint(v)
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
