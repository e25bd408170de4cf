package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/dto"
	"github.com/noah-isme/fortress-api/internal/models"
	"github.com/noah-isme/fortress-api/internal/observability"
	"github.com/noah-isme/fortress-api/internal/repository"
)

// BattlePublisher receives graded outcomes of team assignments.
type BattlePublisher interface {
	Publish(ctx context.Context, teamID uint, event dto.BattleEvent)
}

// SubmissionService grades and records student answers.
type SubmissionService interface {
	SubmitAnswer(ctx context.Context, actor Actor, payload dto.SubmitAnswerRequest) (dto.SubmitAnswerResponse, error)
}

// SubmissionConfig tunes the commit of a graded submission.
type SubmissionConfig struct {
	// RetryBudget is the maximum number of attempts for the submission transaction.
	RetryBudget uint
}

type submissionService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	tx          repository.Transactor
	ledger      ScoreLedger
	grader      Grader
	publisher   BattlePublisher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	config      SubmissionConfig
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService wires the submission flow. publisher may be nil.
func NewSubmissionService(
	assignments repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	tx repository.Transactor,
	ledger ScoreLedger,
	grader Grader,
	publisher BattlePublisher,
	validate *validator.Validate,
	config SubmissionConfig,
	logger zerolog.Logger,
) SubmissionService {
	if config.RetryBudget == 0 {
		config.RetryBudget = defaultRetryBudget
	}
	return &submissionService{
		assignments: assignments,
		submissions: submissions,
		tx:          tx,
		ledger:      ledger,
		grader:      grader,
		publisher:   publisher,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		config:      config,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/fortress-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) SubmitAnswer(ctx context.Context, actor Actor, payload dto.SubmitAnswerRequest) (dto.SubmitAnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmitAnswerResponse{}, validationError(err)
	}
	if actor.ID != payload.StudentID {
		return dto.SubmitAnswerResponse{}, ErrSubmitForAnotherStudent
	}

	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int64("assignment.id", int64(payload.AssignmentID)),
		attribute.Int64("student.id", int64(payload.StudentID)),
	))
	defer span.End()

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmitAnswerResponse{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		return dto.SubmitAnswerResponse{}, fmt.Errorf("load assignment: %w", err)
	}
	if err := assignment.Validate(); err != nil {
		return dto.SubmitAnswerResponse{}, ErrInvalidAssignmentTarget
	}

	answer, err := DecodeAnswer(payload.AnswerPayload)
	if err != nil {
		return dto.SubmitAnswerResponse{}, validationError(err)
	}

	outcome, err := s.grader.Grade(ctx, assignment.Task, answer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grading failed")
		return dto.SubmitAnswerResponse{}, err
	}

	submission, err := retryOnConflict(ctx, s.config.RetryBudget, "submission_commit", func() (models.Submission, error) {
		return s.commit(ctx, assignment, payload.StudentID, answer, outcome)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return dto.SubmitAnswerResponse{}, err
	}

	observability.SubmissionsGradedTotal().WithLabelValues(gradeOutcomeLabel(outcome)).Inc()
	span.SetAttributes(
		attribute.Bool("submission.correct", outcome.IsCorrect),
		attribute.Int64("submission.points", outcome.Points),
	)
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("assignment_id", assignment.ID).
		Uint("student_id", submission.StudentID).
		Uint("attempt", submission.AttemptNo).
		Bool("correct", submission.IsCorrect).
		Int64("points", submission.PointsAwarded).
		Bool("late", submission.IsLate).
		Msg("submission graded")

	if assignment.TeamID != nil {
		s.publish(ctx, *assignment.TeamID, submission)
	}

	return dto.NewSubmitAnswerResponse(submission), nil
}

// commit stores the graded submission and its ledger delta in one transaction.
func (s *submissionService) commit(ctx context.Context, assignment models.Assignment, studentID uint, answer Answer, outcome GradeOutcome) (models.Submission, error) {
	var submission models.Submission
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		previous, err := s.submissions.CountAttempts(ctx, assignment.ID, studentID)
		if err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}

		checkedAt := s.now().UTC()
		submission = models.Submission{
			AssignmentID:  assignment.ID,
			StudentID:     studentID,
			AnswerPayload: datatypes.JSON(answer.Raw),
			AttemptNo:     uint(previous) + 1,
			IsCorrect:     outcome.IsCorrect,
			Feedback:      outcome.Feedback,
			PointsAwarded: outcome.Points,
			IsLate:        assignment.IsPastDue(checkedAt),
			CheckedAt:     &checkedAt,
		}
		if err := s.submissions.Create(ctx, &submission); err != nil {
			return err
		}

		if outcome.Points <= 0 {
			return nil
		}
		_, err = s.ledger.Increment(ctx, assignmentScoreKey(assignment, studentID), outcome.Points)
		return err
	})
	return submission, err
}

func (s *submissionService) publish(ctx context.Context, teamID uint, submission models.Submission) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, teamID, dto.NewBattleUpdateEvent(dto.BattleUpdate{
		StudentID: submission.StudentID,
		Points:    submission.PointsAwarded,
		IsCorrect: submission.IsCorrect,
		Feedback:  s.sanitizer.Sanitize(submission.Feedback),
	}))
}

func assignmentScoreKey(assignment models.Assignment, studentID uint) repository.ScoreKey {
	key := repository.ScoreKey{StudentID: studentID}
	if assignment.TeamID != nil {
		key.TeamID = *assignment.TeamID
	} else if assignment.ClassroomID != nil {
		key.ClassroomID = *assignment.ClassroomID
	}
	return key
}

func gradeOutcomeLabel(outcome GradeOutcome) string {
	switch {
	case outcome.IsCorrect:
		return "correct"
	case outcome.Feedback == FeedbackNoCheck:
		return "ungraded"
	default:
		return "incorrect"
	}
}
