package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/models"
)

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	CountAttempts(ctx context.Context, assignmentID, studentID uint) (int64, error)
	Create(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) CountAttempts(ctx context.Context, assignmentID, studentID uint) (int64, error) {
	var total int64
	err := conn(ctx, r.db).Model(&models.Submission{}).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		Count(&total).Error
	return total, err
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return conn(ctx, r.db).Create(submission).Error
}
