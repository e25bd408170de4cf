package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/models"
)

// TeamRepository reads teams and their membership.
type TeamRepository interface {
	GetByID(ctx context.Context, id uint) (models.Team, error)
	ListMemberIDs(ctx context.Context, teamID uint) ([]uint, error)
}

type teamRepository struct {
	db *gorm.DB
}

// NewTeamRepository instantiates a GORM-backed team repository.
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) GetByID(ctx context.Context, id uint) (models.Team, error) {
	var team models.Team
	if err := conn(ctx, r.db).Preload("Classroom").First(&team, id).Error; err != nil {
		return models.Team{}, err
	}
	return team, nil
}

// ListMemberIDs returns member student IDs in join order.
func (r *teamRepository) ListMemberIDs(ctx context.Context, teamID uint) ([]uint, error) {
	var ids []uint
	err := conn(ctx, r.db).Model(&models.TeamMembership{}).
		Where("team_id = ?", teamID).
		Order("joined_at ASC").
		Order("id ASC").
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
