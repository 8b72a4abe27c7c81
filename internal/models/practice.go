package models

import "time"

// PracticeType distinguishes single words from sentences
type PracticeType string

const (
	PracticeWord     PracticeType = "word"
	PracticeSentence PracticeType = "sentence"
)

// Valid reports whether t is a known practice type
func (t PracticeType) Valid() bool {
	return t == PracticeWord || t == PracticeSentence
}

// PracticeStatus is the lifecycle state of an assignment
type PracticeStatus string

const (
	PracticeActive    PracticeStatus = "active"
	PracticeAttempted PracticeStatus = "attempted"
	PracticeCompleted PracticeStatus = "completed"
)

// rank orders statuses so transitions can only move forward
func (s PracticeStatus) rank() int {
	switch s {
	case PracticeActive:
		return 0
	case PracticeAttempted:
		return 1
	case PracticeCompleted:
		return 2
	default:
		return -1
	}
}

// Advance returns the later of s and next
func (s PracticeStatus) Advance(next PracticeStatus) PracticeStatus {
	if next.rank() > s.rank() {
		return next
	}
	return s
}

// MaxPracticeTextLength bounds the word or sentence a therapist can assign
const MaxPracticeTextLength = 500

// PracticeAssignment is a word or sentence a therapist assigned to a child
type PracticeAssignment struct {
	ID          string         `json:"id"`
	ChildID     string         `json:"childId"`
	AssignedBy  string         `json:"assignedBy"`
	Type        PracticeType   `json:"type"`
	Text        string         `json:"text"`
	Status      PracticeStatus `json:"status"`
	LatestScore *float64       `json:"latestScore,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// PracticeAttempt is one recorded try at an assignment
type PracticeAttempt struct {
	ID            string    `json:"id"`
	AssignmentID  string    `json:"assignmentId"`
	ChildID       string    `json:"childId"`
	SubmittedBy   string    `json:"submittedBy"`
	Score         *float64  `json:"score,omitempty"`
	PredictedText string    `json:"predictedText"`
	CreatedAt     time.Time `json:"createdAt"`
}
