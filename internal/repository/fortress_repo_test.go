package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/fortress-api/internal/models"
)

func setupFortressDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestTaskRepositoryLatestByLevel(t *testing.T) {
	db := setupFortressDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	older := models.Task{Title: "older", Difficulty: models.DifficultyEasy, Tags: []string{"L2", "arrays"}, CreatedAt: base}
	newer := models.Task{Title: "newer", Difficulty: models.DifficultyEasy, Tags: []string{"l2", "L3"}, CreatedAt: base.Add(time.Hour)}
	tied := models.Task{Title: "tied", Difficulty: models.DifficultyEasy, Tags: []string{"L3"}, CreatedAt: base.Add(time.Hour)}
	for _, task := range []*models.Task{&older, &newer, &tied} {
		require.NoError(t, repo.Create(ctx, task))
	}

	var levelRows int64
	require.NoError(t, db.Model(&models.TaskLevel{}).Count(&levelRows).Error)
	require.Equal(t, int64(4), levelRows)

	task, err := repo.LatestByLevel(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "newer", task.Title)

	task, err = repo.LatestByLevel(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, "tied", task.Title, "ties go to the higher id")

	_, err = repo.LatestByLevel(ctx, 9)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTaskRepositoryKeepsZeroMaxPoints(t *testing.T) {
	db := setupFortressDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	practice := models.Task{Title: "practice", Difficulty: models.DifficultyEasy, MaxPoints: 0, ExpectedAnswer: "4"}
	require.NoError(t, repo.Create(ctx, &practice))

	stored, err := repo.GetByID(ctx, practice.ID)
	require.NoError(t, err)
	require.Zero(t, stored.MaxPoints)
}

func TestTaskRepositoryIgnoresZeroPaddedLevelTags(t *testing.T) {
	db := setupFortressDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	padded := models.Task{Title: "padded", Difficulty: models.DifficultyMedium, Tags: []string{"L03", "L003"}}
	require.NoError(t, repo.Create(ctx, &padded))

	var levelRows int64
	require.NoError(t, db.Model(&models.TaskLevel{}).Count(&levelRows).Error)
	require.Zero(t, levelRows)

	_, err := repo.LatestByLevel(ctx, 3)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepositoryRejectsDuplicateAttempt(t *testing.T) {
	db := setupFortressDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Submission{AssignmentID: 4, StudentID: 7, AttemptNo: 1}))
	require.Error(t, repo.Create(ctx, &models.Submission{AssignmentID: 4, StudentID: 7, AttemptNo: 1}))
	require.NoError(t, repo.Create(ctx, &models.Submission{AssignmentID: 4, StudentID: 7, AttemptNo: 2}))
	require.NoError(t, repo.Create(ctx, &models.Submission{AssignmentID: 4, StudentID: 8, AttemptNo: 1}))

	attempts, err := repo.CountAttempts(ctx, 4, 7)
	require.NoError(t, err)
	require.Equal(t, int64(2), attempts)
}

func TestTaskRepositoryLatestByDifficulty(t *testing.T) {
	db := setupFortressDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &models.Task{Title: "first", Difficulty: models.DifficultyHard, CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &models.Task{Title: "second", Difficulty: models.DifficultyHard, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &models.Task{Title: "easy", Difficulty: models.DifficultyEasy, CreatedAt: base.Add(time.Hour)}))

	task, err := repo.LatestByDifficulty(ctx, models.DifficultyHard)
	require.NoError(t, err)
	require.Equal(t, "second", task.Title)

	_, err = repo.LatestByDifficulty(ctx, models.DifficultyMedium)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestScoreRepositoryAccumulateUpserts(t *testing.T) {
	db := setupFortressDB(t)
	repo := NewScoreRepository(db)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	key := ScoreKey{StudentID: 4, ClassroomID: 2}
	total, err := repo.Accumulate(ctx, key, 15, at)
	require.NoError(t, err)
	require.Equal(t, int64(15), total)

	total, err = repo.Accumulate(ctx, key, 20, at.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(35), total)

	other, err := repo.Accumulate(ctx, ScoreKey{StudentID: 4}, 1, at)
	require.NoError(t, err)
	require.Equal(t, int64(1), other)

	entry, err := repo.Find(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(35), entry.TotalPoints)
	require.Equal(t, uint(0), entry.TeamID)

	var rows int64
	require.NoError(t, db.Model(&models.ScoreEntry{}).Count(&rows).Error)
	require.Equal(t, int64(2), rows)

	_, err = repo.Find(ctx, ScoreKey{StudentID: 4, TeamID: 9})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTeamRepositoryMembersInJoinOrder(t *testing.T) {
	db := setupFortressDB(t)
	repo := NewTeamRepository(db)
	ctx := context.Background()

	classroom := models.Classroom{Name: "8A", TeacherID: 70}
	require.NoError(t, db.Create(&classroom).Error)
	team := models.Team{ClassroomID: classroom.ID, Name: "Bishops"}
	require.NoError(t, db.Create(&team).Error)

	joined := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	memberships := []models.TeamMembership{
		{TeamID: team.ID, StudentID: 30, JoinedAt: joined.Add(time.Hour)},
		{TeamID: team.ID, StudentID: 10, JoinedAt: joined},
		{TeamID: team.ID, StudentID: 20, JoinedAt: joined.Add(time.Hour)},
	}
	require.NoError(t, db.Create(&memberships).Error)

	loaded, err := repo.GetByID(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, uint(70), loaded.Classroom.TeacherID)

	ids, err := repo.ListMemberIDs(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{10, 30, 20}, ids)

	_, err = repo.GetByID(ctx, 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAssignmentRepositoryCreateBatchIsAtomic(t *testing.T) {
	db := setupFortressDB(t)
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	task := models.Task{Title: "Loops", Difficulty: models.DifficultyEasy}
	require.NoError(t, NewTaskRepository(db).Create(ctx, &task))

	team := uint(3)
	valid := models.Assignment{TaskID: task.ID, TeamID: &team, AssignedBy: 9}
	invalid := models.Assignment{TaskID: task.ID, AssignedBy: 9}

	err := repo.CreateBatch(ctx, []models.Assignment{valid, invalid})
	require.ErrorIs(t, err, models.ErrAssignmentTarget)

	var count int64
	require.NoError(t, db.Model(&models.Assignment{}).Where("team_id = ?", team).Count(&count).Error)
	require.Zero(t, count)

	batch := []models.Assignment{valid, {TaskID: task.ID, TeamID: &team, AssignedBy: 9}}
	require.NoError(t, repo.CreateBatch(ctx, batch))
	require.NotZero(t, batch[0].ID)
	require.NotZero(t, batch[1].ID)

	require.NoError(t, db.Model(&models.Assignment{}).Where("team_id = ?", team).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestTransactorRollsBackAndExposesTransaction(t *testing.T) {
	db := setupFortressDB(t)
	tx := NewTransactor(db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	require.False(t, InTransaction(ctx))

	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		require.True(t, InTransaction(ctx))
		if err := repo.Create(ctx, &models.Submission{AssignmentID: 1, StudentID: 2, AttemptNo: 1}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	attempts, err := repo.CountAttempts(ctx, 1, 2)
	require.NoError(t, err)
	require.Zero(t, attempts)
}
