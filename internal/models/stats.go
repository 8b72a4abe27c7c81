package models

import "time"

// XPPerLevel is the amount of XP between consecutive levels
const XPPerLevel = 1000

// Level derives the player level from total XP. It is never stored.
func Level(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/XPPerLevel + 1
}

// UserGameStats holds per-user game counters
type UserGameStats struct {
	UserID       string    `json:"userId"`
	Achievements int       `json:"achievements"`
	GamesPlayed  int       `json:"gamesPlayed"`
	TotalXP      int       `json:"totalXP"`
	Version      int       `json:"-"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Level returns the level for the stored XP total
func (s *UserGameStats) Level() int {
	return Level(s.TotalXP)
}

// UserGoalStats holds per-user streak and goal counters
type UserGoalStats struct {
	UserID           string    `json:"userId"`
	CurrentStreak    int       `json:"currentStreak"`
	BestStreak       int       `json:"bestStreak"`
	GoalsCompleted   int       `json:"goalsCompleted"`
	TotalXPEarned    int       `json:"totalXPEarned"`
	LastPracticeDate Date      `json:"lastPracticeDate"`
	Version          int       `json:"-"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// StreakState is the outcome of a streak operation
type StreakState struct {
	CurrentStreak    int  `json:"currentStreak"`
	BestStreak       int  `json:"bestStreak"`
	LastPracticeDate Date `json:"lastPracticeDate"`
}

// StatsSnapshot is the combined read view of a user's progress
type StatsSnapshot struct {
	UserID         string `json:"userId"`
	TotalXP        int    `json:"totalXP"`
	Level          int    `json:"level"`
	GamesPlayed    int    `json:"gamesPlayed"`
	Achievements   int    `json:"achievements"`
	CurrentStreak  int    `json:"currentStreak"`
	BestStreak     int    `json:"bestStreak"`
	GoalsCompleted int    `json:"goalsCompleted"`
	TotalXPEarned  int    `json:"totalXPEarned"`
	LastPractice   Date   `json:"lastPracticeDate"`
}

// GameCompletion is a finished game reported by a child
type GameCompletion struct {
	GameID            string `json:"gameId,omitempty"`
	XPEarned          int    `json:"xpEarned"`
	AchievementsDelta int    `json:"achievementsDelta"`
}
