package models

import (
	"errors"
	"time"
)

// ErrAssignmentTarget is returned when an assignment does not target exactly one audience.
var ErrAssignmentTarget = errors.New("assignment must target exactly one of classroom or team")

// Assignment hands a task to either a whole classroom or a single team.
type Assignment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TaskID      uint       `gorm:"not null;index" json:"task_id"`
	ClassroomID *uint      `gorm:"index" json:"classroom_id"`
	TeamID      *uint      `gorm:"index" json:"team_id"`
	AssignedBy  uint       `gorm:"not null" json:"assigned_by"`
	DueAt       *time.Time `json:"due_at"`
	CreatedAt   time.Time  `json:"created_at"`
	Task        Task       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"task"`
}

// Validate enforces the classroom/team exclusivity invariant.
func (a Assignment) Validate() error {
	if (a.ClassroomID == nil) == (a.TeamID == nil) {
		return ErrAssignmentTarget
	}
	return nil
}

// IsPastDue returns true when the assignment has a deadline that already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueAt != nil && reference.After(*a.DueAt)
}
