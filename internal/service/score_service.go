package service

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/fortress-api/internal/dto"
	"github.com/noah-isme/fortress-api/internal/repository"
)

// ScoreService answers point queries for one dimension.
type ScoreService interface {
	QueryScore(ctx context.Context, query dto.ScoreQuery) (dto.ScoreResponse, error)
}

type scoreService struct {
	ledger    ScoreLedger
	validator *validator.Validate
}

// NewScoreService exposes the ledger's read side.
func NewScoreService(ledger ScoreLedger, validate *validator.Validate) ScoreService {
	return &scoreService{ledger: ledger, validator: validate}
}

func (s *scoreService) QueryScore(ctx context.Context, query dto.ScoreQuery) (dto.ScoreResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.ScoreResponse{}, validationError(err)
	}

	key := repository.ScoreKey{StudentID: query.StudentID}
	if query.ClassroomID != nil {
		key.ClassroomID = *query.ClassroomID
	}
	if query.TeamID != nil {
		key.TeamID = *query.TeamID
	}

	points, err := s.ledger.Query(ctx, key)
	if err != nil {
		return dto.ScoreResponse{}, err
	}

	return dto.ScoreResponse{
		StudentID:   query.StudentID,
		ClassroomID: query.ClassroomID,
		TeamID:      query.TeamID,
		Points:      points,
		Level:       ResolveLevel(points),
	}, nil
}
