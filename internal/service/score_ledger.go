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

	"github.com/noah-isme/fortress-api/internal/observability"
	"github.com/noah-isme/fortress-api/internal/repository"
)

// ScoreLedger keeps per-dimension point totals.
type ScoreLedger interface {
	// Increment adds delta to the dimension's total, creating the row on first use,
	// and returns the new total. Increments on one dimension are linearizable.
	Increment(ctx context.Context, key repository.ScoreKey, delta int64) (int64, error)
	// Query returns the dimension's total, or 0 when it has never been incremented.
	Query(ctx context.Context, key repository.ScoreKey) (int64, error)
	// Lookup is Query that also reports whether the dimension exists.
	Lookup(ctx context.Context, key repository.ScoreKey) (int64, bool, error)
}

// LedgerConfig tunes conflict handling.
type LedgerConfig struct {
	// RetryBudget is the maximum number of attempts for one increment.
	RetryBudget uint
}

type scoreLedger struct {
	scores repository.ScoreRepository
	config LedgerConfig
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewScoreLedger constructs the ledger over a score repository.
func NewScoreLedger(scores repository.ScoreRepository, config LedgerConfig, logger zerolog.Logger) ScoreLedger {
	if config.RetryBudget == 0 {
		config.RetryBudget = defaultRetryBudget
	}
	return &scoreLedger{
		scores: scores,
		config: config,
		logger: logger.With().Str("component", "score_ledger").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/fortress-api/internal/service/score_ledger"),
		now:    time.Now,
	}
}

func (l *scoreLedger) Increment(ctx context.Context, key repository.ScoreKey, delta int64) (int64, error) {
	if key.StudentID == 0 {
		return 0, validationError(errors.New("student id is required"))
	}
	if delta < 0 {
		return 0, validationError(fmt.Errorf("score delta must not be negative, got %d", delta))
	}

	ctx, span := l.tracer.Start(ctx, "ledger.increment", trace.WithAttributes(scoreKeyAttributes(key, delta)...))
	defer span.End()

	accumulate := func() (int64, error) {
		return l.scores.Accumulate(ctx, key, delta, l.now().UTC())
	}

	var (
		total int64
		err   error
	)
	if repository.InTransaction(ctx) {
		// The enclosing unit of work owns the retry; a failed statement aborts its transaction.
		total, err = accumulate()
	} else {
		total, err = retryOnConflict(ctx, l.config.RetryBudget, "ledger_increment", accumulate)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "increment_failed")
		return 0, err
	}

	observability.LedgerIncrementsTotal().WithLabelValues(dimensionLabel(key)).Inc()
	span.SetAttributes(attribute.Int64("ledger.total", total))
	l.logger.Debug().
		Uint("student_id", key.StudentID).
		Uint("classroom_id", key.ClassroomID).
		Uint("team_id", key.TeamID).
		Int64("delta", delta).
		Int64("total", total).
		Msg("score incremented")

	return total, nil
}

func (l *scoreLedger) Query(ctx context.Context, key repository.ScoreKey) (int64, error) {
	points, _, err := l.Lookup(ctx, key)
	return points, err
}

func (l *scoreLedger) Lookup(ctx context.Context, key repository.ScoreKey) (int64, bool, error) {
	if key.StudentID == 0 {
		return 0, false, validationError(errors.New("student id is required"))
	}

	entry, err := l.scores.Find(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return entry.TotalPoints, true, nil
}

func dimensionLabel(key repository.ScoreKey) string {
	switch {
	case key.TeamID != 0:
		return "team"
	case key.ClassroomID != 0:
		return "classroom"
	default:
		return "global"
	}
}

func scoreKeyAttributes(key repository.ScoreKey, delta int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("ledger.student_id", int64(key.StudentID)),
		attribute.Int64("ledger.classroom_id", int64(key.ClassroomID)),
		attribute.Int64("ledger.team_id", int64(key.TeamID)),
		attribute.Int64("ledger.delta", delta),
	}
}
