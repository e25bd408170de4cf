package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/models"
)

// AssignmentRepository defines persistence operations for assignments.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	CreateBatch(ctx context.Context, assignments []models.Assignment) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := conn(ctx, r.db).Preload("Task").First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

// CreateBatch inserts every assignment or none of them.
func (r *assignmentRepository) CreateBatch(ctx context.Context, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	for _, assignment := range assignments {
		if err := assignment.Validate(); err != nil {
			return err
		}
	}

	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Task").Create(&assignments).Error
	})
}
