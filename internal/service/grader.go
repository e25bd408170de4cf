package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/fortress-api/internal/models"
)

// Feedback messages produced by the built-in graders.
const (
	FeedbackCorrect   = "correct"
	FeedbackNoCheck   = "answer accepted, no automatic check is configured"
	feedbackIncorrect = "incorrect, expected %s"
	feedbackBadShape  = "incorrect, answer does not match the expected structure"
)

// ErrInvalidSolutionSpec is returned when a task's structured check cannot be compiled.
var ErrInvalidSolutionSpec = fmt.Errorf("%w: task solution spec is invalid", ErrPreconditionFailed)

// GradeOutcome is the result of checking one answer.
type GradeOutcome struct {
	IsCorrect bool
	Feedback  string
	Points    int64
}

// Grader checks a decoded answer against a task.
type Grader interface {
	Grade(ctx context.Context, task models.Task, answer Answer) (GradeOutcome, error)
}

// ExactMatchGrader compares the answer with the task's expected answer, case-sensitively.
// Tasks without an expected answer are accepted as not correct with zero points.
type ExactMatchGrader struct{}

// Grade implements Grader.
func (ExactMatchGrader) Grade(_ context.Context, task models.Task, answer Answer) (GradeOutcome, error) {
	expected := strings.TrimSpace(task.ExpectedAnswer)
	if expected == "" {
		return GradeOutcome{Feedback: FeedbackNoCheck}, nil
	}

	if answer.Value != expected {
		return GradeOutcome{Feedback: fmt.Sprintf(feedbackIncorrect, expected)}, nil
	}

	return GradeOutcome{IsCorrect: true, Feedback: FeedbackCorrect, Points: int64(task.MaxPoints)}, nil
}

// SchemaGrader validates the answer against the JSON schema stored in the task's
// solution spec. Compiled schemas are cached per task since tasks never change.
type SchemaGrader struct {
	logger  zerolog.Logger
	schemas sync.Map
}

// NewSchemaGrader constructs a SchemaGrader.
func NewSchemaGrader(logger zerolog.Logger) *SchemaGrader {
	return &SchemaGrader{logger: logger.With().Str("component", "schema_grader").Logger()}
}

// Grade implements Grader.
func (g *SchemaGrader) Grade(_ context.Context, task models.Task, answer Answer) (GradeOutcome, error) {
	schema, err := g.compile(task)
	if err != nil {
		return GradeOutcome{}, err
	}

	if err := schema.Validate(answer.Document); err != nil {
		g.logger.Debug().Err(err).Uint("task_id", task.ID).Msg("answer rejected by solution spec")
		return GradeOutcome{Feedback: feedbackBadShape}, nil
	}

	return GradeOutcome{IsCorrect: true, Feedback: FeedbackCorrect, Points: int64(task.MaxPoints)}, nil
}

func (g *SchemaGrader) compile(task models.Task) (*jsonschema.Schema, error) {
	if cached, ok := g.schemas.Load(task.ID); ok {
		return cached.(*jsonschema.Schema), nil
	}

	url := fmt.Sprintf("task-%d-solution.json", task.ID)
	schema, err := jsonschema.CompileString(url, string(task.SolutionSpec))
	if err != nil {
		g.logger.Warn().Err(err).Uint("task_id", task.ID).Msg("failed to compile solution spec")
		return nil, fmt.Errorf("%w: %s", ErrInvalidSolutionSpec, err.Error())
	}

	actual, _ := g.schemas.LoadOrStore(task.ID, schema)
	return actual.(*jsonschema.Schema), nil
}

type routingGrader struct {
	exact      Grader
	structured Grader
}

// NewGrader returns the default grader: tasks with a solution spec are checked
// structurally, every other task by exact match.
func NewGrader(logger zerolog.Logger) Grader {
	return &routingGrader{
		exact:      ExactMatchGrader{},
		structured: NewSchemaGrader(logger),
	}
}

func (g *routingGrader) Grade(ctx context.Context, task models.Task, answer Answer) (GradeOutcome, error) {
	if task.HasSolutionSpec() {
		return g.structured.Grade(ctx, task, answer)
	}
	return g.exact.Grade(ctx, task, answer)
}
