package dto

// ScoreQuery selects one scoring dimension. Omitted scopes mean absent.
type ScoreQuery struct {
	StudentID   uint  `query:"student_id" validate:"required,gt=0"`
	ClassroomID *uint `query:"classroom_id" validate:"omitempty,gt=0"`
	TeamID      *uint `query:"team_id" validate:"omitempty,gt=0"`
}

// ScoreResponse is the total of one scoring dimension.
type ScoreResponse struct {
	StudentID   uint  `json:"student_id"`
	ClassroomID *uint `json:"classroom_id"`
	TeamID      *uint `json:"team_id"`
	Points      int64 `json:"points"`
	Level       int   `json:"level"`
}
