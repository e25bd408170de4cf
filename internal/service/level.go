package service

import "github.com/noah-isme/fortress-api/internal/models"

const pointsPerLevel = 100

// ResolveLevel maps a point total to a skill level: one level per 100 points, minimum 1.
func ResolveLevel(points int64) int {
	if points < 0 {
		return 1
	}
	return int(1 + points/pointsPerLevel)
}

// fallbackDifficulty picks the difficulty tier searched when no level tag matches.
func fallbackDifficulty(level int) string {
	switch {
	case level <= 2:
		return models.DifficultyEasy
	case level <= 5:
		return models.DifficultyMedium
	default:
		return models.DifficultyHard
	}
}
