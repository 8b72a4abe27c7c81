package models

import "time"

// Achievement is a badge unlocked by a user. Each type is granted at most once.
type Achievement struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	AchievementType string    `json:"achievementType"`
	Description     string    `json:"description"`
	XPReward        int       `json:"xpReward"`
	CreatedAt       time.Time `json:"createdAt"`
}
