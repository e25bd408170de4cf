package models

import "time"

// Classroom groups students under one teacher.
type Classroom struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	TeacherID uint      `gorm:"not null;index" json:"teacher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Team is a group of students inside a classroom.
type Team struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ClassroomID uint      `gorm:"not null;uniqueIndex:idx_team_classroom_name" json:"classroom_id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex:idx_team_classroom_name" json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	Classroom   Classroom `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"classroom"`
}

// TeamMembership links a student to a team.
type TeamMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    uint      `gorm:"not null;uniqueIndex:idx_team_student" json:"team_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_team_student" json:"student_id"`
	Role      string    `gorm:"size:16;not null;default:MEMBER" json:"role"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// All returns every model managed by the service, in migration order.
func All() []interface{} {
	return []interface{}{
		&Classroom{},
		&Team{},
		&TeamMembership{},
		&Task{},
		&TaskLevel{},
		&Assignment{},
		&Submission{},
		&ScoreEntry{},
	}
}
