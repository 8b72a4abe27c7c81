package models

import (
	"encoding/json"
	"time"
)

// EventKind names an entry in the activity log
type EventKind string

const (
	EventPracticeTouch      EventKind = "practice_touch"
	EventStreakReset        EventKind = "streak_reset"
	EventGameCompleted      EventKind = "game_completed"
	EventXPCredited         EventKind = "xp_credited"
	EventAchievementGranted EventKind = "achievement_granted"
	EventGoalCompleted      EventKind = "goal_completed"
)

// ActivityEvent is an append-only record of something a user did or earned
type ActivityEvent struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Kind      EventKind       `json:"kind"`
	DedupeKey string          `json:"dedupeKey,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// XPSource identifies where credited XP came from
type XPSource string

const (
	XPSourceGame        XPSource = "game"
	XPSourceAchievement XPSource = "achievement"
	XPSourceGoal        XPSource = "goal"
)

func (s XPSource) Valid() bool {
	switch s {
	case XPSourceGame, XPSourceAchievement, XPSourceGoal:
		return true
	}
	return false
}
