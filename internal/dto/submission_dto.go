package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/fortress-api/internal/models"
)

// SubmitAnswerRequest is the body of an answer submission.
type SubmitAnswerRequest struct {
	AssignmentID  uint            `json:"assignment_id" validate:"required,gt=0"`
	StudentID     uint            `json:"student_id" validate:"required,gt=0"`
	AnswerPayload json.RawMessage `json:"answer_payload" validate:"required"`
}

// SubmitAnswerResponse reports the graded outcome of a submission.
type SubmitAnswerResponse struct {
	SubmissionID  uint       `json:"submission_id"`
	AttemptNo     uint       `json:"attempt_no"`
	IsCorrect     bool       `json:"is_correct"`
	Feedback      string     `json:"feedback"`
	PointsAwarded int64      `json:"points_awarded"`
	IsLate        bool       `json:"is_late"`
	CheckedAt     *time.Time `json:"checked_at"`
}

// NewSubmitAnswerResponse converts a graded submission into its response.
func NewSubmitAnswerResponse(model models.Submission) SubmitAnswerResponse {
	return SubmitAnswerResponse{
		SubmissionID:  model.ID,
		AttemptNo:     model.AttemptNo,
		IsCorrect:     model.IsCorrect,
		Feedback:      model.Feedback,
		PointsAwarded: model.PointsAwarded,
		IsLate:        model.IsLate,
		CheckedAt:     model.CheckedAt,
	}
}
