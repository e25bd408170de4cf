package models

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Difficulty tiers used as the last fallback when selecting a task for a level.
const (
	DifficultyEasy   = "EASY"
	DifficultyMedium = "MEDIUM"
	DifficultyHard   = "HARD"
)

// Task is a gradable exercise. Tasks are immutable once created.
type Task struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	Title          string                      `gorm:"size:255;not null" json:"title"`
	Body           string                      `gorm:"type:text" json:"body"`
	Difficulty     string                      `gorm:"size:16;not null;index" json:"difficulty"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	MaxPoints      uint                        `gorm:"not null" json:"max_points"`
	ExpectedAnswer string                      `gorm:"size:255" json:"expected_answer"`
	SolutionSpec   datatypes.JSON              `json:"solution_spec,omitempty"`
	CreatedAt      time.Time                   `gorm:"index" json:"created_at"`
	Levels         []TaskLevel                 `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TaskLevel indexes a task under every level tag it carries.
type TaskLevel struct {
	ID     uint `gorm:"primaryKey"`
	TaskID uint `gorm:"not null;uniqueIndex:idx_task_level"`
	Level  int  `gorm:"not null;uniqueIndex:idx_task_level;index"`
}

// HasSolutionSpec reports whether a structured check is configured.
func (t Task) HasSolutionSpec() bool {
	if len(t.SolutionSpec) == 0 {
		return false
	}
	switch string(t.SolutionSpec) {
	case "null", "{}":
		return false
	}
	return true
}

// LevelTags returns the distinct levels encoded in the task's tags, ascending.
func (t Task) LevelTags() []int {
	seen := make(map[int]struct{}, len(t.Tags))
	levels := make([]int, 0, len(t.Tags))
	for _, tag := range t.Tags {
		level, ok := ParseLevelTag(tag)
		if !ok {
			continue
		}
		if _, dup := seen[level]; dup {
			continue
		}
		seen[level] = struct{}{}
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

// ParseLevelTag extracts the level from a tag of the form "L<digits>". The letter is
// case-insensitive and surrounding whitespace is ignored. Digits must be the canonical
// decimal form, so "L03" is not a level tag.
func ParseLevelTag(tag string) (int, bool) {
	trimmed := strings.TrimSpace(tag)
	if len(trimmed) < 2 || (trimmed[0] != 'L' && trimmed[0] != 'l') {
		return 0, false
	}
	digits := trimmed[1:]
	if len(digits) > 1 && digits[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	level, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return level, true
}
