package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fortress-api/internal/middleware"
	"github.com/noah-isme/fortress-api/internal/service"
	"github.com/noah-isme/fortress-api/internal/utils"
)

// Error codes carried in failed responses.
const (
	codeValidation   = "validation_failed"
	codeForbidden    = "forbidden"
	codeNotFound     = "not_found"
	codePrecondition = "precondition_failed"
	codeConflict     = "conflict"
	codeInternal     = "internal_error"
)

func parseQueryUint(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	result := uint(parsed)
	return &result, nil
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Params(key)), 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	switch id := c.Locals("user_id").(type) {
	case uint:
		return id
	case int:
		if id < 0 {
			return 0
		}
		return uint(id)
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if role, ok := c.Locals("user_role").(string); ok {
		return role
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// sendServiceError maps a service error category onto its HTTP status.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendErrorWithCode(c, fiber.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return utils.SendErrorWithCode(c, fiber.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, service.ErrPreconditionFailed):
		return utils.SendErrorWithCode(c, fiber.StatusPreconditionFailed, codePrecondition, err.Error())
	case errors.Is(err, service.ErrConflict):
		return utils.SendErrorWithCode(c, fiber.StatusConflict, codeConflict, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendErrorWithCode(c, fiber.StatusInternalServerError, codeInternal, "internal server error")
	}
}
