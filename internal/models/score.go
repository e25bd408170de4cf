package models

import "time"

// ScoreEntry is the running point total of one student in one scoring dimension.
// A zero ClassroomID or TeamID means the scope is absent; the global dimension has both zero.
type ScoreEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   uint      `gorm:"not null;uniqueIndex:idx_score_dimension" json:"student_id"`
	ClassroomID uint      `gorm:"not null;default:0;uniqueIndex:idx_score_dimension" json:"classroom_id"`
	TeamID      uint      `gorm:"not null;default:0;uniqueIndex:idx_score_dimension" json:"team_id"`
	TotalPoints int64     `gorm:"not null;default:0" json:"total_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName pins the table name used by raw upsert expressions.
func (ScoreEntry) TableName() string {
	return "score_entries"
}
