package service

import (
	"errors"
	"fmt"
)

// Error categories returned by the core operations. Specific errors wrap one of
// these so the transport layer can map them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
)

var (
	// ErrTaskNotFound indicates no task could be resolved for a level.
	ErrTaskNotFound = fmt.Errorf("%w: no task available", ErrNotFound)
	// ErrTeamNotFound indicates the referenced team does not exist.
	ErrTeamNotFound = fmt.Errorf("%w: team not found", ErrNotFound)
	// ErrAssignmentNotFound indicates the referenced assignment does not exist.
	ErrAssignmentNotFound = fmt.Errorf("%w: assignment not found", ErrNotFound)
	// ErrNoMembers is returned when launching a battle for an empty team.
	ErrNoMembers = fmt.Errorf("%w: team has no members", ErrPreconditionFailed)
	// ErrInvalidAssignmentTarget flags an assignment with both or neither of classroom/team.
	ErrInvalidAssignmentTarget = fmt.Errorf("%w: assignment must target exactly one of classroom or team", ErrPreconditionFailed)
	// ErrLedgerRetryExhausted is returned when an increment keeps conflicting.
	ErrLedgerRetryExhausted = fmt.Errorf("%w: score update retry budget exhausted", ErrConflict)
	// ErrLaunchInProgress is returned when the team lock could not be taken in time.
	ErrLaunchInProgress = fmt.Errorf("%w: another launch for this team is in progress", ErrConflict)
	// ErrSubmitForAnotherStudent is returned when the actor submits on behalf of someone else.
	ErrSubmitForAnotherStudent = fmt.Errorf("%w: cannot submit an answer for another student", ErrForbidden)
	// ErrNotClassroomTeacher is returned when the actor does not teach the team's classroom.
	ErrNotClassroomTeacher = fmt.Errorf("%w: only the classroom teacher can launch a battle", ErrForbidden)
)

// LevelUnresolvedError reports the level for which no task exists during a launch.
type LevelUnresolvedError struct {
	Level     int
	StudentID uint
}

func (e *LevelUnresolvedError) Error() string {
	return fmt.Sprintf("no task available for level %d", e.Level)
}

// Unwrap makes the error match ErrConflict.
func (e *LevelUnresolvedError) Unwrap() error {
	return ErrConflict
}

func validationError(err error) error {
	return fmt.Errorf("%w: %s", ErrValidation, err.Error())
}
