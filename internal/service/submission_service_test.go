package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/dto"
	"github.com/noah-isme/fortress-api/internal/models"
	"github.com/noah-isme/fortress-api/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	teams  []uint
	events []dto.BattleEvent
	// committed reports how many submissions were visible when Publish ran.
	committed []int64
	db        *gorm.DB
}

func (p *recordingPublisher) Publish(ctx context.Context, teamID uint, event dto.BattleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teams = append(p.teams, teamID)
	p.events = append(p.events, event)
	if p.db != nil {
		var count int64
		p.db.Model(&models.Submission{}).Count(&count)
		p.committed = append(p.committed, count)
	}
}

type submissionFixture struct {
	db        *gorm.DB
	svc       SubmissionService
	ledger    ScoreLedger
	publisher *recordingPublisher
	teamTask  models.Assignment
	classTask models.Assignment
	noCheck   models.Assignment
	classroom models.Classroom
	team      models.Team
}

func newSubmissionFixture(t *testing.T) submissionFixture {
	t.Helper()
	db := setupLedgerDB(t)

	classroom := models.Classroom{Name: "7B", TeacherID: 90}
	require.NoError(t, db.Create(&classroom).Error)
	team := models.Team{ClassroomID: classroom.ID, Name: "Rooks"}
	require.NoError(t, db.Create(&team).Error)

	answered := models.Task{Title: "Sum", Difficulty: models.DifficultyEasy, MaxPoints: 10, ExpectedAnswer: "42", Tags: []string{"L1"}}
	require.NoError(t, db.Create(&answered).Error)
	open := models.Task{Title: "Essay", Difficulty: models.DifficultyEasy, MaxPoints: 10}
	require.NoError(t, db.Create(&open).Error)

	teamTask := models.Assignment{TaskID: answered.ID, TeamID: uintPtr(team.ID), AssignedBy: 90}
	classTask := models.Assignment{TaskID: answered.ID, ClassroomID: uintPtr(classroom.ID), AssignedBy: 90}
	noCheck := models.Assignment{TaskID: open.ID, TeamID: uintPtr(team.ID), AssignedBy: 90}
	for _, assignment := range []*models.Assignment{&teamTask, &classTask, &noCheck} {
		require.NoError(t, db.Omit("Task").Create(assignment).Error)
	}

	ledger := NewScoreLedger(repository.NewScoreRepository(db), LedgerConfig{}, testLogger())
	publisher := &recordingPublisher{db: db}
	svc := NewSubmissionService(
		repository.NewAssignmentRepository(db),
		repository.NewSubmissionRepository(db),
		repository.NewTransactor(db),
		ledger,
		NewGrader(testLogger()),
		publisher,
		validator.New(validator.WithRequiredStructEnabled()),
		SubmissionConfig{},
		testLogger(),
	)

	return submissionFixture{
		db:        db,
		svc:       svc,
		ledger:    ledger,
		publisher: publisher,
		teamTask:  teamTask,
		classTask: classTask,
		noCheck:   noCheck,
		classroom: classroom,
		team:      team,
	}
}

func submit(assignmentID, studentID uint, payload string) dto.SubmitAnswerRequest {
	return dto.SubmitAnswerRequest{
		AssignmentID:  assignmentID,
		StudentID:     studentID,
		AnswerPayload: json.RawMessage(payload),
	}
}

func TestSubmitAnswerCorrectCreditsTeamDimension(t *testing.T) {
	fx := newSubmissionFixture(t)
	ctx := context.Background()

	resp, err := fx.svc.SubmitAnswer(ctx, Actor{ID: 11, Role: RoleStudent}, submit(fx.teamTask.ID, 11, `{"answer":" 42 "}`))
	require.NoError(t, err)
	require.True(t, resp.IsCorrect)
	require.Equal(t, FeedbackCorrect, resp.Feedback)
	require.Equal(t, int64(10), resp.PointsAwarded)
	require.Equal(t, uint(1), resp.AttemptNo)
	require.NotNil(t, resp.CheckedAt)
	require.False(t, resp.IsLate)

	points, err := fx.ledger.Query(ctx, repository.ScoreKey{StudentID: 11, TeamID: fx.team.ID})
	require.NoError(t, err)
	require.Equal(t, int64(10), points)

	require.Equal(t, []uint{fx.team.ID}, fx.publisher.teams)
	require.Equal(t, []int64{1}, fx.publisher.committed)
	event := fx.publisher.events[0]
	require.Equal(t, dto.EventBattleUpdate, event.Type)
	require.Equal(t, dto.BattleUpdate{StudentID: 11, Points: 10, IsCorrect: true, Feedback: FeedbackCorrect}, event.Message)
}

func TestSubmitAnswerIncorrectKeepsLedgerUntouched(t *testing.T) {
	fx := newSubmissionFixture(t)
	ctx := context.Background()

	resp, err := fx.svc.SubmitAnswer(ctx, Actor{ID: 11}, submit(fx.teamTask.ID, 11, `{"answer":"43"}`))
	require.NoError(t, err)
	require.False(t, resp.IsCorrect)
	require.Equal(t, "incorrect, expected 42", resp.Feedback)
	require.Zero(t, resp.PointsAwarded)

	_, found, err := fx.ledger.Lookup(ctx, repository.ScoreKey{StudentID: 11, TeamID: fx.team.ID})
	require.NoError(t, err)
	require.False(t, found)

	second, err := fx.svc.SubmitAnswer(ctx, Actor{ID: 11}, submit(fx.teamTask.ID, 11, `"42"`))
	require.NoError(t, err)
	require.True(t, second.IsCorrect)
	require.Equal(t, uint(2), second.AttemptNo)
}

func TestSubmitAnswerClassroomAssignmentDoesNotPublish(t *testing.T) {
	fx := newSubmissionFixture(t)
	ctx := context.Background()

	_, err := fx.svc.SubmitAnswer(ctx, Actor{ID: 12}, submit(fx.classTask.ID, 12, `{"answer":"42"}`))
	require.NoError(t, err)
	require.Empty(t, fx.publisher.events)

	points, err := fx.ledger.Query(ctx, repository.ScoreKey{StudentID: 12, ClassroomID: fx.classroom.ID})
	require.NoError(t, err)
	require.Equal(t, int64(10), points)
}

func TestSubmitAnswerWithoutExpectedAnswer(t *testing.T) {
	fx := newSubmissionFixture(t)

	resp, err := fx.svc.SubmitAnswer(context.Background(), Actor{ID: 11}, submit(fx.noCheck.ID, 11, `"my essay"`))
	require.NoError(t, err)
	require.False(t, resp.IsCorrect)
	require.Zero(t, resp.PointsAwarded)
	require.Equal(t, FeedbackNoCheck, resp.Feedback)

	var stored models.Submission
	require.NoError(t, fx.db.First(&stored, resp.SubmissionID).Error)
	require.NotNil(t, stored.CheckedAt)
	require.JSONEq(t, `"my essay"`, string(stored.AnswerPayload))
}

func TestSubmitAnswerPastDueIsRecordedAsLate(t *testing.T) {
	fx := newSubmissionFixture(t)
	due := time.Now().Add(-time.Hour)
	require.NoError(t, fx.db.Model(&models.Assignment{}).Where("id = ?", fx.teamTask.ID).Update("due_at", due).Error)

	resp, err := fx.svc.SubmitAnswer(context.Background(), Actor{ID: 11}, submit(fx.teamTask.ID, 11, `"42"`))
	require.NoError(t, err)
	require.True(t, resp.IsCorrect)
	require.True(t, resp.IsLate)
	require.Equal(t, int64(10), resp.PointsAwarded)
}

func TestSubmitAnswerRejectsOtherStudentBeforeWriting(t *testing.T) {
	fx := newSubmissionFixture(t)

	_, err := fx.svc.SubmitAnswer(context.Background(), Actor{ID: 99}, submit(fx.teamTask.ID, 11, `"42"`))
	require.ErrorIs(t, err, ErrForbidden)

	var count int64
	require.NoError(t, fx.db.Model(&models.Submission{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, fx.publisher.events)
}

func TestSubmitAnswerErrors(t *testing.T) {
	fx := newSubmissionFixture(t)
	ctx := context.Background()

	_, err := fx.svc.SubmitAnswer(ctx, Actor{ID: 11}, submit(9999, 11, `"42"`))
	require.ErrorIs(t, err, ErrNotFound)

	_, err = fx.svc.SubmitAnswer(ctx, Actor{ID: 11}, submit(fx.teamTask.ID, 11, `{"answer":`))
	require.ErrorIs(t, err, ErrValidation)

	_, err = fx.svc.SubmitAnswer(ctx, Actor{ID: 11}, dto.SubmitAnswerRequest{StudentID: 11, AnswerPayload: json.RawMessage(`"x"`)})
	require.ErrorIs(t, err, ErrValidation)

	broken := models.Assignment{TaskID: fx.teamTask.TaskID, AssignedBy: 90}
	require.NoError(t, fx.db.Omit("Task").Create(&broken).Error)
	_, err = fx.svc.SubmitAnswer(ctx, Actor{ID: 11}, submit(broken.ID, 11, `"42"`))
	require.ErrorIs(t, err, ErrPreconditionFailed)
}

// failingLedger refuses every increment.
type failingLedger struct {
	stubLedger
	err error
}

func (l *failingLedger) Increment(ctx context.Context, key repository.ScoreKey, delta int64) (int64, error) {
	return 0, l.err
}

func TestSubmitAnswerRollsBackWhenLedgerFails(t *testing.T) {
	fx := newSubmissionFixture(t)
	boom := errors.New("ledger unavailable")
	svc := NewSubmissionService(
		repository.NewAssignmentRepository(fx.db),
		repository.NewSubmissionRepository(fx.db),
		repository.NewTransactor(fx.db),
		&failingLedger{err: boom},
		NewGrader(testLogger()),
		fx.publisher,
		validator.New(validator.WithRequiredStructEnabled()),
		SubmissionConfig{},
		testLogger(),
	)

	_, err := svc.SubmitAnswer(context.Background(), Actor{ID: 11}, submit(fx.teamTask.ID, 11, `"42"`))
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, fx.db.Model(&models.Submission{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, fx.publisher.events)
}

// staleAttempts under-reports the attempt count once, as a concurrent commit would.
type staleAttempts struct {
	repository.SubmissionRepository
	mu    sync.Mutex
	stale bool
	calls int
}

func (r *staleAttempts) CountAttempts(ctx context.Context, assignmentID, studentID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	count, err := r.SubmissionRepository.CountAttempts(ctx, assignmentID, studentID)
	if err != nil || !r.stale || count == 0 {
		return count, err
	}
	r.stale = false
	return count - 1, nil
}

func TestSubmitAnswerRetriesDuplicateAttemptNumber(t *testing.T) {
	fx := newSubmissionFixture(t)
	ctx := context.Background()

	_, err := fx.svc.SubmitAnswer(ctx, Actor{ID: 11}, submit(fx.teamTask.ID, 11, `"42"`))
	require.NoError(t, err)

	submissions := &staleAttempts{SubmissionRepository: repository.NewSubmissionRepository(fx.db), stale: true}
	svc := NewSubmissionService(
		repository.NewAssignmentRepository(fx.db),
		submissions,
		repository.NewTransactor(fx.db),
		fx.ledger,
		NewGrader(testLogger()),
		fx.publisher,
		validator.New(validator.WithRequiredStructEnabled()),
		SubmissionConfig{},
		testLogger(),
	)

	resp, err := svc.SubmitAnswer(ctx, Actor{ID: 11}, submit(fx.teamTask.ID, 11, `"42"`))
	require.NoError(t, err)
	require.Equal(t, uint(2), resp.AttemptNo)
	require.Equal(t, 2, submissions.calls)

	points, err := fx.ledger.Query(ctx, repository.ScoreKey{StudentID: 11, TeamID: fx.team.ID})
	require.NoError(t, err)
	require.Equal(t, int64(20), points)
}
