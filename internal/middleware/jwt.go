package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/fortress-api/internal/utils"
)

// JWTProtected returns a middleware that validates JWT bearer tokens. Websocket
// upgrades may carry the token in the access_token query parameter.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, message := bearerToken(c)
		if tokenString == "" {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "unauthorized", message)
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		if err != nil || !token.Valid {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "unauthorized", "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "unauthorized", "invalid token claims")
		}

		userID, ok := subjectFromClaims(claims)
		if !ok {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "unauthorized", "token has no subject")
		}
		c.Locals("user_id", userID)
		if role := roleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, string) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		if isWebsocketUpgrade(c) {
			if token := strings.TrimSpace(c.Query("access_token")); token != "" {
				return token, ""
			}
		}
		return "", "authorization header missing"
	}

	const bearer = "Bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", "invalid authorization header"
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", "invalid token"
	}
	return token, ""
}

func isWebsocketUpgrade(c *fiber.Ctx) bool {
	return strings.EqualFold(c.Get(fiber.HeaderUpgrade), "websocket")
}

// knownRoles are the actor roles the battle API understands; anything else is ignored.
var knownRoles = map[string]struct{}{"student": {}, "teacher": {}, "admin": {}}

func subjectFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		var (
			id  uint64
			err error
		)
		switch v := claims[key].(type) {
		case float64:
			if v <= 0 || v != float64(uint64(v)) {
				continue
			}
			id = uint64(v)
		case string:
			id, err = strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err != nil || id == 0 {
				continue
			}
		default:
			continue
		}
		return uint(id), true
	}
	return 0, false
}

func roleFromClaims(claims jwt.MapClaims) string {
	var candidates []interface{}
	for _, key := range []string{"role", "roles"} {
		switch v := claims[key].(type) {
		case string:
			candidates = append(candidates, v)
		case []interface{}:
			candidates = append(candidates, v...)
		}
	}
	for _, candidate := range candidates {
		role := normalizeRoleValue(candidate)
		if _, ok := knownRoles[role]; ok {
			return role
		}
	}
	return ""
}
