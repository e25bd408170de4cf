package handler

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fortress-api/internal/dto"
	"github.com/noah-isme/fortress-api/internal/service"
	"github.com/noah-isme/fortress-api/internal/utils"
)

const (
	battleWriteTimeout = 10 * time.Second
	actionSubmitAnswer = "submit_answer"
)

// BattleStream hands out live subscriptions to a team's battle events.
type BattleStream interface {
	Subscribe(teamID uint) (*service.Subscription, error)
	SubscriberCount(teamID uint) int
}

// BattleHandler serves battle launches and the live battle stream.
type BattleHandler struct {
	battles   service.BattleService
	stream    BattleStream
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewBattleHandler builds a battle handler instance.
func NewBattleHandler(battles service.BattleService, stream BattleStream, validator *validator.Validate, logger zerolog.Logger) *BattleHandler {
	return &BattleHandler{
		battles:   battles,
		stream:    stream,
		validator: validator,
		logger:    logger.With().Str("component", "battle_handler").Logger(),
	}
}

// Register binds the launch endpoint. launchGuard runs before the launch handler.
func (h *BattleHandler) Register(router fiber.Router, launchGuard fiber.Handler) {
	router.Post("/launch", launchGuard, h.launch)
	router.Use("/:team_id/ws", h.upgrade)
	router.Get("/:team_id/ws", websocket.New(h.serveStream))
}

func (h *BattleHandler) launch(c *fiber.Ctx) error {
	var payload dto.LaunchBattleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, codeValidation, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, codeValidation, err.Error())
	}

	ids, err := h.battles.LaunchBattle(requestContext(c), actorFromContext(c), payload.TeamID, payload.DueAt)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "battle launched", dto.LaunchBattleResponse{
		TeamID:      payload.TeamID,
		Assignments: ids,
	})
}

func (h *BattleHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	teamID, err := parseUintParam(c, "team_id")
	if err != nil {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, codeValidation, err.Error())
	}
	c.Locals("battle_team_id", teamID)
	return c.Next()
}

func (h *BattleHandler) serveStream(conn *websocket.Conn) {
	teamID, _ := conn.Locals("battle_team_id").(uint)
	logger := h.logger.With().Uint("team_id", teamID).Interface("user_id", conn.Locals("user_id")).Logger()

	sub, err := h.stream.Subscribe(teamID)
	if err != nil {
		logger.Warn().Err(err).Msg("battle stream unavailable")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "battle stream unavailable"))
		return
	}
	defer sub.Close()
	logger.Debug().Int("subscribers", h.stream.SubscriberCount(teamID)).Msg("battle stream opened")

	var writeMu sync.Mutex
	write := func(event dto.BattleEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(battleWriteTimeout))
		return conn.WriteJSON(event)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var message dto.BattleClientMessage
			if err := conn.ReadJSON(&message); err != nil {
				return
			}
			if message.Action != actionSubmitAnswer {
				continue
			}
			if err := write(dto.NewAnswerReceivedEvent(message.Answer)); err != nil {
				return
			}
		}
	}()

	logger.Info().Msg("battle stream connected")
	defer logger.Info().Msg("battle stream disconnected")

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				writeMu.Lock()
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "battle stream closed"))
				writeMu.Unlock()
				return
			}
			if err := write(event); err != nil {
				logger.Debug().Err(err).Msg("battle stream write failed")
				return
			}
		case <-readerDone:
			return
		}
	}
}
