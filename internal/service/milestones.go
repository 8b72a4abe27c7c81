package service

import "fmt"

// Milestone is an achievement unlocked when a counter reaches Threshold
type Milestone struct {
	Threshold   int
	Type        string
	Description string
	XPReward    int
}

// DefaultStreakMilestones unlock on consecutive practice days
var DefaultStreakMilestones = []Milestone{
	streakMilestone(3, 25),
	streakMilestone(7, 50),
	streakMilestone(14, 100),
	streakMilestone(30, 250),
}

// DefaultGoalMilestones unlock on the number of completed goals
var DefaultGoalMilestones = []Milestone{
	{Threshold: 1, Type: "goals_1", Description: "Completed a first goal", XPReward: 20},
	goalMilestone(5, 50),
	goalMilestone(10, 100),
	goalMilestone(25, 250),
}

func streakMilestone(days, xp int) Milestone {
	return Milestone{
		Threshold:   days,
		Type:        fmt.Sprintf("streak_%d", days),
		Description: fmt.Sprintf("Practised %d days in a row", days),
		XPReward:    xp,
	}
}

func goalMilestone(goals, xp int) Milestone {
	return Milestone{
		Threshold:   goals,
		Type:        fmt.Sprintf("goals_%d", goals),
		Description: fmt.Sprintf("Completed %d goals", goals),
		XPReward:    xp,
	}
}

// reached returns the milestones whose threshold value meets
func reached(milestones []Milestone, value int) []Milestone {
	var out []Milestone
	for _, m := range milestones {
		if value >= m.Threshold {
			out = append(out, m)
		}
	}
	return out
}
