package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/fortress-api/internal/models"
	"github.com/noah-isme/fortress-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService loads task catalogues for local and staging environments.
type SeedService interface {
	SeedTasks(ctx context.Context, token string, tasks []models.Task) (int64, error)
}

type seedService struct {
	tasks   repository.TaskRepository
	tx      repository.Transactor
	enabled bool
	token   string
	logger  zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(tasks repository.TaskRepository, tx repository.Transactor, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		tasks:   tasks,
		tx:      tx,
		enabled: enabled,
		token:   token,
		logger:  logger.With().Str("component", "seed_service").Logger(),
	}
}

// SeedTasks inserts the whole batch in one transaction; a single invalid task rejects all of them.
func (s *seedService) SeedTasks(ctx context.Context, token string, tasks []models.Task) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}

	normalized := make([]models.Task, 0, len(tasks))
	for i, task := range tasks {
		task, err := normalizeTask(task)
		if err != nil {
			return 0, fmt.Errorf("%w: task %d: %v", ErrValidation, i, err)
		}
		normalized = append(normalized, task)
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for i := range normalized {
			if err := s.tasks.Create(ctx, &normalized[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int("affected", len(normalized)).Msg("tasks seeded")
	return int64(len(normalized)), nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

func normalizeTask(task models.Task) (models.Task, error) {
	task.ID = 0
	task.Levels = nil
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return task, errors.New("title is required")
	}
	task.Difficulty = strings.ToUpper(strings.TrimSpace(task.Difficulty))
	switch task.Difficulty {
	case "":
		task.Difficulty = models.DifficultyEasy
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
	default:
		return task, fmt.Errorf("unknown difficulty %q", task.Difficulty)
	}
	if task.MaxPoints == 0 {
		task.MaxPoints = 10
	}
	return task, nil
}
