package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/models"
	"github.com/noah-isme/fortress-api/internal/repository"
)

// neighbourOffsets is the probe order used when no task carries the exact level tag.
var neighbourOffsets = []int{1, -1, 2, -2, 3, -3}

// TaskSelector resolves a skill level to a concrete task.
type TaskSelector interface {
	SelectTask(ctx context.Context, level int) (models.Task, error)
}

type taskSelector struct {
	tasks  repository.TaskRepository
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewTaskSelector builds a selector over the task repository.
func NewTaskSelector(tasks repository.TaskRepository, logger zerolog.Logger) TaskSelector {
	return &taskSelector{
		tasks:  tasks,
		logger: logger.With().Str("component", "task_selector").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/fortress-api/internal/service/task_selector"),
	}
}

// SelectTask returns the newest task tagged L{level}; failing that the newest task of
// the nearest neighbouring level (+1, -1, +2, -2, +3, -3); failing that the newest task
// of the difficulty tier matching the level.
func (s *taskSelector) SelectTask(ctx context.Context, level int) (models.Task, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.select", trace.WithAttributes(attribute.Int("task.level", level)))
	defer span.End()

	task, found, err := s.byLevel(ctx, level)
	if err != nil || found {
		return task, err
	}

	for _, offset := range neighbourOffsets {
		candidate := level + offset
		if candidate < 0 {
			continue
		}
		task, found, err = s.byLevel(ctx, candidate)
		if err != nil {
			return models.Task{}, err
		}
		if found {
			span.SetAttributes(attribute.Int("task.matched_level", candidate))
			s.logger.Debug().Int("level", level).Int("matched_level", candidate).Uint("task_id", task.ID).Msg("task resolved from neighbouring level")
			return task, nil
		}
	}

	difficulty := fallbackDifficulty(level)
	task, err = s.tasks.LatestByDifficulty(ctx, difficulty)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, fmt.Errorf("%w for level %d", ErrTaskNotFound, level)
		}
		span.RecordError(err)
		return models.Task{}, err
	}

	span.SetAttributes(attribute.String("task.fallback_difficulty", difficulty))
	s.logger.Debug().Int("level", level).Str("difficulty", difficulty).Uint("task_id", task.ID).Msg("task resolved from difficulty fallback")
	return task, nil
}

func (s *taskSelector) byLevel(ctx context.Context, level int) (models.Task, bool, error) {
	task, err := s.tasks.LatestByLevel(ctx, level)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, false, nil
		}
		return models.Task{}, false, err
	}
	return task, true, nil
}
