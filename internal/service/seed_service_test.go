package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fortress-api/internal/models"
	"github.com/noah-isme/fortress-api/internal/repository"
)

func TestSeedServiceTokenGuard(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewSeedService(repository.NewTaskRepository(db), repository.NewTransactor(db), true, "secret", testLogger())

	_, err := svc.SeedTasks(context.Background(), "wrong", []models.Task{{Title: "Sum"}})
	require.ErrorIs(t, err, ErrSeedUnauthorized)

	disabled := NewSeedService(repository.NewTaskRepository(db), repository.NewTransactor(db), false, "secret", testLogger())
	_, err = disabled.SeedTasks(context.Background(), "secret", []models.Task{{Title: "Sum"}})
	require.ErrorIs(t, err, ErrSeedDisabled)

	var count int64
	require.NoError(t, db.Model(&models.Task{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSeedServiceIndexesLevels(t *testing.T) {
	db := setupLedgerDB(t)
	tasks := repository.NewTaskRepository(db)
	svc := NewSeedService(tasks, repository.NewTransactor(db), true, "secret", testLogger())

	affected, err := svc.SeedTasks(context.Background(), " secret ", []models.Task{
		{Title: "Warmup", Difficulty: "easy", Tags: []string{"L1", "l2"}, ExpectedAnswer: "4"},
		{Title: "Boss", Difficulty: models.DifficultyHard, Tags: []string{"L5"}, MaxPoints: 50},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	task, err := tasks.LatestByLevel(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "Warmup", task.Title)
	require.Equal(t, models.DifficultyEasy, task.Difficulty)
	require.Equal(t, uint(10), task.MaxPoints)

	boss, err := tasks.LatestByDifficulty(context.Background(), models.DifficultyHard)
	require.NoError(t, err)
	require.Equal(t, uint(50), boss.MaxPoints)
}

func TestSeedServiceRejectsWholeBatch(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewSeedService(repository.NewTaskRepository(db), repository.NewTransactor(db), true, "secret", testLogger())

	_, err := svc.SeedTasks(context.Background(), "secret", []models.Task{
		{Title: "Fine", Tags: []string{"L1"}},
		{Title: "Broken", Difficulty: "IMPOSSIBLE"},
	})
	require.ErrorIs(t, err, ErrValidation)

	var count int64
	require.NoError(t, db.Model(&models.Task{}).Count(&count).Error)
	require.Zero(t, count)
}
