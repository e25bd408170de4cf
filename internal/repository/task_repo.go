package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/models"
)

// TaskRepository exposes the task lookups used by task selection and grading.
type TaskRepository interface {
	GetByID(ctx context.Context, id uint) (models.Task, error)
	LatestByLevel(ctx context.Context, level int) (models.Task, error)
	LatestByDifficulty(ctx context.Context, difficulty string) (models.Task, error)
	Create(ctx context.Context, task *models.Task) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository instantiates a GORM-backed task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (models.Task, error) {
	var task models.Task
	if err := conn(ctx, r.db).First(&task, id).Error; err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (r *taskRepository) LatestByLevel(ctx context.Context, level int) (models.Task, error) {
	var task models.Task
	err := conn(ctx, r.db).
		Joins("JOIN task_levels ON task_levels.task_id = tasks.id").
		Where("task_levels.level = ?", level).
		Order("tasks.created_at DESC").
		Order("tasks.id DESC").
		Take(&task).Error
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (r *taskRepository) LatestByDifficulty(ctx context.Context, difficulty string) (models.Task, error) {
	var task models.Task
	err := conn(ctx, r.db).
		Where("difficulty = ?", difficulty).
		Order("created_at DESC").
		Order("id DESC").
		Take(&task).Error
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Create stores the task together with one index row per level tag.
func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	levels := task.LevelTags()
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Levels").Create(task).Error; err != nil {
			return err
		}
		if len(levels) == 0 {
			return nil
		}
		rows := make([]models.TaskLevel, 0, len(levels))
		for _, level := range levels {
			rows = append(rows, models.TaskLevel{TaskID: task.ID, Level: level})
		}
		return tx.Create(&rows).Error
	})
}
