package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/fortress-api/internal/models"
)

// ScoreKey identifies one scoring dimension. Zero ClassroomID/TeamID means absent.
type ScoreKey struct {
	StudentID   uint
	ClassroomID uint
	TeamID      uint
}

// ScoreRepository is the storage behind the score ledger. Score rows are only
// ever changed through Accumulate.
type ScoreRepository interface {
	Accumulate(ctx context.Context, key ScoreKey, delta int64, at time.Time) (int64, error)
	Find(ctx context.Context, key ScoreKey) (models.ScoreEntry, error)
}

type scoreRepository struct {
	db *gorm.DB
}

// NewScoreRepository instantiates a GORM-backed score repository.
func NewScoreRepository(db *gorm.DB) ScoreRepository {
	return &scoreRepository{db: db}
}

var scoreDimensionColumns = []clause.Column{
	{Name: "student_id"},
	{Name: "classroom_id"},
	{Name: "team_id"},
}

// Accumulate inserts the row with delta as its total, or adds delta to the existing
// row, in one statement. The follow-up read runs in the same transaction while the
// row lock is held, so the returned total includes exactly this increment.
func (r *scoreRepository) Accumulate(ctx context.Context, key ScoreKey, delta int64, at time.Time) (int64, error) {
	var total int64
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		entry := models.ScoreEntry{
			StudentID:   key.StudentID,
			ClassroomID: key.ClassroomID,
			TeamID:      key.TeamID,
			TotalPoints: delta,
			UpdatedAt:   at,
		}

		upsert := tx.Clauses(clause.OnConflict{
			Columns: scoreDimensionColumns,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_points": gorm.Expr("score_entries.total_points + ?", delta),
				"updated_at":   at,
			}),
		}).Create(&entry)
		if upsert.Error != nil {
			return upsert.Error
		}

		stored, err := findScore(tx, key)
		if err != nil {
			return err
		}
		total = stored.TotalPoints
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *scoreRepository) Find(ctx context.Context, key ScoreKey) (models.ScoreEntry, error) {
	return findScore(conn(ctx, r.db), key)
}

func findScore(db *gorm.DB, key ScoreKey) (models.ScoreEntry, error) {
	var entry models.ScoreEntry
	err := db.
		Where("student_id = ?", key.StudentID).
		Where("classroom_id = ?", key.ClassroomID).
		Where("team_id = ?", key.TeamID).
		Take(&entry).Error
	if err != nil {
		return models.ScoreEntry{}, err
	}
	return entry, nil
}
