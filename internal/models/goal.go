package models

import "time"

// GoalStatus is the lifecycle state of an assigned goal
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

func (s GoalStatus) Valid() bool {
	return s == GoalActive || s == GoalCompleted
}

// AssignedGoal is a numeric target set for a child by a parent or therapist
type AssignedGoal struct {
	ID             string     `json:"id"`
	ChildID        string     `json:"childId"`
	AssignedBy     string     `json:"assignedBy"`
	AssignedByRole Role       `json:"assignedByRole"`
	Title          string     `json:"title"`
	TargetValue    int        `json:"targetValue"`
	XPReward       int        `json:"xpReward"`
	Status         GoalStatus `json:"status"`
	Progress       int        `json:"progress"`
	Version        int        `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// IsCompleted reports whether the goal reached its terminal state
func (g *AssignedGoal) IsCompleted() bool {
	return g.Status == GoalCompleted
}
