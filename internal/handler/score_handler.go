package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fortress-api/internal/dto"
	"github.com/noah-isme/fortress-api/internal/service"
	"github.com/noah-isme/fortress-api/internal/utils"
)

// ScoreHandler serves point totals.
type ScoreHandler struct {
	service service.ScoreService
	logger  zerolog.Logger
}

// NewScoreHandler builds a score handler instance.
func NewScoreHandler(service service.ScoreService, logger zerolog.Logger) *ScoreHandler {
	return &ScoreHandler{
		service: service,
		logger:  logger.With().Str("component", "score_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ScoreHandler) Register(router fiber.Router) {
	router.Get("", h.get)
}

func (h *ScoreHandler) get(c *fiber.Ctx) error {
	var query dto.ScoreQuery

	studentID, err := parseQueryUint(c, "student_id")
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, codeValidation, err.Error())
	}
	if studentID != nil {
		query.StudentID = *studentID
	}
	if query.ClassroomID, err = parseQueryUint(c, "classroom_id"); err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, codeValidation, err.Error())
	}
	if query.TeamID, err = parseQueryUint(c, "team_id"); err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, codeValidation, err.Error())
	}

	score, err := h.service.QueryScore(requestContext(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "score retrieved", score)
}
