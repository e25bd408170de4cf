package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/models"
	"github.com/noah-isme/fortress-api/internal/observability"
	"github.com/noah-isme/fortress-api/internal/repository"
)

// BattleService launches team battles.
type BattleService interface {
	// LaunchBattle assigns one level-matched task to every member of the team and
	// returns the new assignment ids in member join order. Either every member gets
	// an assignment or none does.
	LaunchBattle(ctx context.Context, actor Actor, teamID uint, dueAt *time.Time) ([]uint, error)
}

type battleService struct {
	teams       repository.TeamRepository
	assignments repository.AssignmentRepository
	ledger      ScoreLedger
	selector    TaskSelector
	locker      TeamLocker
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewBattleService wires the launch orchestration.
func NewBattleService(
	teams repository.TeamRepository,
	assignments repository.AssignmentRepository,
	ledger ScoreLedger,
	selector TaskSelector,
	locker TeamLocker,
	logger zerolog.Logger,
) BattleService {
	return &battleService{
		teams:       teams,
		assignments: assignments,
		ledger:      ledger,
		selector:    selector,
		locker:      locker,
		logger:      logger.With().Str("component", "battle_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/fortress-api/internal/service/battle"),
		now:         time.Now,
	}
}

func (s *battleService) LaunchBattle(ctx context.Context, actor Actor, teamID uint, dueAt *time.Time) ([]uint, error) {
	ctx, span := s.tracer.Start(ctx, "battle.launch", trace.WithAttributes(
		attribute.Int64("team.id", int64(teamID)),
		attribute.Int64("actor.id", int64(actor.ID)),
	))
	defer span.End()

	ids, err := s.launch(ctx, actor, teamID, dueAt)
	if err != nil {
		observability.BattlesLaunchedTotal().WithLabelValues(launchResult(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "battle launch failed")
		return nil, err
	}

	observability.BattlesLaunchedTotal().WithLabelValues("launched").Inc()
	observability.BattleAssignmentsTotal().Add(float64(len(ids)))
	span.SetAttributes(attribute.Int("battle.assignments", len(ids)))
	s.logger.Info().
		Uint("team_id", teamID).
		Uint("actor_id", actor.ID).
		Int("assignments", len(ids)).
		Msg("battle launched")
	return ids, nil
}

func (s *battleService) launch(ctx context.Context, actor Actor, teamID uint, dueAt *time.Time) ([]uint, error) {
	if teamID == 0 {
		return nil, validationError(errors.New("team id is required"))
	}

	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("load team: %w", err)
	}

	if !actor.IsAdmin() && team.Classroom.TeacherID != actor.ID {
		return nil, ErrNotClassroomTeacher
	}

	release, err := s.locker.Acquire(ctx, teamID)
	if err != nil {
		return nil, err
	}
	defer release()

	members, err := s.teams.ListMemberIDs(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	createdAt := s.now().UTC()
	batch := make([]models.Assignment, 0, len(members))
	for _, studentID := range members {
		task, err := s.taskFor(ctx, team, studentID)
		if err != nil {
			return nil, err
		}

		target := teamID
		batch = append(batch, models.Assignment{
			TaskID:     task.ID,
			TeamID:     &target,
			AssignedBy: actor.ID,
			DueAt:      dueAt,
			CreatedAt:  createdAt,
		})
	}

	if err := s.assignments.CreateBatch(ctx, batch); err != nil {
		if errors.Is(err, models.ErrAssignmentTarget) {
			return nil, ErrInvalidAssignmentTarget
		}
		return nil, fmt.Errorf("create battle assignments: %w", err)
	}

	ids := make([]uint, len(batch))
	for i := range batch {
		ids[i] = batch[i].ID
	}
	return ids, nil
}

// taskFor picks a task for one member from their most specific known score.
func (s *battleService) taskFor(ctx context.Context, team models.Team, studentID uint) (models.Task, error) {
	points, err := s.memberPoints(ctx, team, studentID)
	if err != nil {
		return models.Task{}, err
	}

	level := ResolveLevel(points)
	task, err := s.selector.SelectTask(ctx, level)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			s.logger.Warn().
				Uint("team_id", team.ID).
				Uint("student_id", studentID).
				Int("level", level).
				Msg("no task for member level, aborting launch")
			return models.Task{}, &LevelUnresolvedError{Level: level, StudentID: studentID}
		}
		return models.Task{}, fmt.Errorf("select task for level %d: %w", level, err)
	}
	return task, nil
}

// memberPoints prefers the team score, then the classroom score, then the global one.
func (s *battleService) memberPoints(ctx context.Context, team models.Team, studentID uint) (int64, error) {
	keys := []repository.ScoreKey{
		{StudentID: studentID, TeamID: team.ID},
		{StudentID: studentID, ClassroomID: team.ClassroomID},
		{StudentID: studentID},
	}
	for _, key := range keys {
		points, found, err := s.ledger.Lookup(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("lookup score: %w", err)
		}
		if found {
			return points, nil
		}
	}
	return 0, nil
}

func launchResult(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
