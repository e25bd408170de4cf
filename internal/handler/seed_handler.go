package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fortress-api/internal/models"
	"github.com/noah-isme/fortress-api/internal/service"
	"github.com/noah-isme/fortress-api/internal/utils"
)

// SeedHandler exposes tooling endpoints for seeding the task catalogue.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/tasks", h.tasks)
}

type seedTasksRequest struct {
	Items []models.Task `json:"items"`
}

func (h *SeedHandler) tasks(c *fiber.Ctx) error {
	token := c.Get("X-Seed-Token")
	var payload seedTasksRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, codeValidation, "invalid payload")
	}

	affected, err := h.service.SeedTasks(requestContext(c), token, payload.Items)
	if err != nil {
		return h.seedError(c, err)
	}

	return utils.SendSuccess(c, "tasks seeded", fiber.Map{"affected": affected})
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
		return utils.SendErrorWithCode(c, fiber.StatusForbidden, codeForbidden, "seeding disabled")
	case errors.Is(err, service.ErrSeedUnauthorized):
		return utils.SendErrorWithCode(c, fiber.StatusForbidden, codeForbidden, "invalid token")
	case errors.Is(err, service.ErrValidation):
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, codeValidation, err.Error())
	default:
		h.logger.Error().Err(err).Msg("seed operation failed")
		return utils.SendErrorWithCode(c, fiber.StatusInternalServerError, codeInternal, "seed operation failed")
	}
}
