package dto

import (
	"fmt"
	"time"
)

// Battle stream event types.
const (
	EventConnectionSuccess = "connection_success"
	EventBattleUpdate      = "battle.update"
	EventAnswerReceived    = "answer_received"
)

// LaunchBattleRequest starts a battle for every member of a team.
type LaunchBattleRequest struct {
	TeamID uint       `json:"team_id" validate:"required,gt=0"`
	DueAt  *time.Time `json:"due_at"`
}

// LaunchBattleResponse lists the created assignments in member order.
type LaunchBattleResponse struct {
	TeamID      uint   `json:"team_id"`
	Assignments []uint `json:"assignments"`
}

// BattleEvent is one message on a team's battle stream.
type BattleEvent struct {
	Type    string      `json:"type"`
	Message interface{} `json:"message"`
}

// BattleUpdate is the message of a battle.update event.
type BattleUpdate struct {
	StudentID uint   `json:"student_id"`
	Points    int64  `json:"points"`
	IsCorrect bool   `json:"is_correct"`
	Feedback  string `json:"feedback"`
}

// BattleClientMessage is what a stream client may send.
type BattleClientMessage struct {
	Action string      `json:"action"`
	Answer interface{} `json:"answer"`
}

// NewConnectionEvent builds the acknowledgement sent to a new subscriber.
func NewConnectionEvent(teamID uint) BattleEvent {
	return BattleEvent{
		Type:    EventConnectionSuccess,
		Message: fmt.Sprintf("connected to battle %d", teamID),
	}
}

// NewBattleUpdateEvent wraps a graded outcome for broadcasting.
func NewBattleUpdateEvent(update BattleUpdate) BattleEvent {
	return BattleEvent{Type: EventBattleUpdate, Message: update}
}

// NewAnswerReceivedEvent acknowledges an answer sent over the stream.
func NewAnswerReceivedEvent(answer interface{}) BattleEvent {
	return BattleEvent{
		Type:    EventAnswerReceived,
		Message: fmt.Sprintf("answer '%v' received", answer),
	}
}
