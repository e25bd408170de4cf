package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is a student's answer to an assignment, graded when it is created.
type Submission struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AssignmentID  uint           `gorm:"not null;uniqueIndex:idx_submission_attempt" json:"assignment_id"`
	StudentID     uint           `gorm:"not null;uniqueIndex:idx_submission_attempt" json:"student_id"`
	AnswerPayload datatypes.JSON `json:"answer_payload"`
	AttemptNo     uint           `gorm:"not null;uniqueIndex:idx_submission_attempt" json:"attempt_no"`
	IsCorrect     bool           `gorm:"not null;default:false" json:"is_correct"`
	Feedback      string         `gorm:"type:text" json:"feedback"`
	PointsAwarded int64          `gorm:"not null;default:0" json:"points_awarded"`
	IsLate        bool           `gorm:"not null;default:false" json:"is_late"`
	CheckedAt     *time.Time     `json:"checked_at"`
	CreatedAt     time.Time      `json:"created_at"`
}
