package service

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talkquest/internal/database"
	"talkquest/internal/metrics"
	"talkquest/internal/models"
	"talkquest/internal/repository"
)

// PracticeService runs the practice assignment state machine:
// active -> attempted -> completed, where only words can complete.
type PracticeService struct {
	db       *database.DB
	practice *repository.PracticeRepository
	access   access
	clock    Clock
	logger   *zap.Logger
}

// NewPracticeService creates a new practice service
func NewPracticeService(db *database.DB, clock Clock, logger *zap.Logger) *PracticeService {
	return &PracticeService{
		db:       db,
		practice: repository.NewPracticeRepository(db),
		access:   access{users: repository.NewUserRepository(db)},
		clock:    clock,
		logger:   logger,
	}
}

// AttemptResult is a recorded attempt and the assignment state after it
type AttemptResult struct {
	Attempt    *models.PracticeAttempt    `json:"attempt"`
	Assignment *models.PracticeAssignment `json:"assignment"`
}

// Assign creates an active assignment for a child. Only therapists may assign.
func (s *PracticeService) Assign(ctx context.Context, caller models.Identity, childID string, practiceType models.PracticeType, text string) (*models.PracticeAssignment, error) {
	const op = "PracticeService.Assign"

	if !caller.IsTherapist() {
		return nil, forbidden(op, "only therapists can assign practice")
	}
	if !practiceType.Valid() {
		return nil, invalidArgument(op, "type must be word or sentence")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidArgument(op, "text is required")
	}
	if utf8.RuneCountInString(text) > models.MaxPracticeTextLength {
		return nil, invalidArgument(op, "text must be at most %d characters", models.MaxPracticeTextLength)
	}
	if _, err := s.access.requireChild(ctx, op, childID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	assignment := &models.PracticeAssignment{
		ID:         uuid.NewString(),
		ChildID:    childID,
		AssignedBy: caller.UserID,
		Type:       practiceType,
		Text:       text,
		Status:     models.PracticeActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.practice.CreateAssignment(ctx, assignment); err != nil {
		return nil, wrap(op, err)
	}

	s.logger.Info("Practice assigned",
		zap.String("assignmentID", assignment.ID),
		zap.String("childID", childID),
		zap.String("type", string(practiceType)))
	return assignment, nil
}

// RecordAttempt appends an attempt and advances the assignment. Sentences
// move to attempted and keep the latest score. Words complete when the
// owning child submits. Status never moves backwards.
func (s *PracticeService) RecordAttempt(ctx context.Context, caller models.Identity, assignmentID string, score *float64, predictedText string) (*AttemptResult, error) {
	const op = "PracticeService.RecordAttempt"

	if score != nil && (math.IsNaN(*score) || math.IsInf(*score, 0) || *score < 0) {
		return nil, invalidArgument(op, "score must be a finite non-negative number")
	}

	var result *AttemptResult
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		repo := s.practice.WithTx(tx)

		assignment, err := repo.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}

		isOwner := caller.IsChild() && caller.UserID == assignment.ChildID
		if !isOwner && !caller.IsTherapist() {
			return forbidden(op, "only the assigned child or a therapist can submit attempts")
		}

		now := s.clock.Now().UTC()
		attempt := &models.PracticeAttempt{
			ID:            uuid.NewString(),
			AssignmentID:  assignment.ID,
			ChildID:       assignment.ChildID,
			SubmittedBy:   caller.UserID,
			Score:         score,
			PredictedText: strings.TrimSpace(predictedText),
			CreatedAt:     now,
		}
		if err := repo.CreateAttempt(ctx, attempt); err != nil {
			return err
		}

		status := assignment.Status
		latest := assignment.LatestScore
		switch assignment.Type {
		case models.PracticeSentence:
			status = status.Advance(models.PracticeAttempted)
			if score != nil {
				latest = score
			}
		case models.PracticeWord:
			if isOwner {
				status = status.Advance(models.PracticeCompleted)
			}
		}

		if status != assignment.Status || latest != assignment.LatestScore {
			if err := repo.UpdateAssignmentState(ctx, assignment.ID, status, latest, now); err != nil {
				return err
			}
			assignment.Status = status
			assignment.LatestScore = latest
			assignment.UpdatedAt = now
		}

		result = &AttemptResult{Attempt: attempt, Assignment: assignment}
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	metrics.PracticeAttemptsTotal.WithLabelValues(string(result.Assignment.Type)).Inc()
	return result, nil
}

// MarkComplete completes a word assignment without recording an attempt.
// Only the assigned child may do this. Completing twice is a no-op.
func (s *PracticeService) MarkComplete(ctx context.Context, caller models.Identity, assignmentID string) (*models.PracticeAssignment, error) {
	const op = "PracticeService.MarkComplete"

	var assignment *models.PracticeAssignment
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		repo := s.practice.WithTx(tx)

		var err error
		assignment, err = repo.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if assignment.Type != models.PracticeWord {
			return invalidArgument(op, "only word assignments can be marked complete")
		}
		if !caller.IsChild() || caller.UserID != assignment.ChildID {
			return forbidden(op, "only the assigned child can mark practice complete")
		}

		now := s.clock.Now().UTC()
		changed, err := repo.MarkCompleted(ctx, assignment.ID, now)
		if err != nil {
			return err
		}
		if changed {
			assignment.Status = models.PracticeCompleted
			assignment.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return assignment, nil
}

// ListForChild returns a child's assignments, newest first
func (s *PracticeService) ListForChild(ctx context.Context, caller models.Identity, childID string) ([]models.PracticeAssignment, error) {
	const op = "PracticeService.ListForChild"

	if childID == "" {
		return nil, invalidArgument(op, "childId is required")
	}
	if err := s.access.authorizeChildView(ctx, op, caller, childID); err != nil {
		return nil, err
	}

	assignments, err := s.practice.ListAssignmentsByChild(ctx, childID)
	if err != nil {
		return nil, wrap(op, err)
	}
	sortAssignments(assignments)
	return assignments, nil
}

// ListAssignedBy returns the assignments the caller created, newest first
func (s *PracticeService) ListAssignedBy(ctx context.Context, caller models.Identity) ([]models.PracticeAssignment, error) {
	assignments, err := s.practice.ListAssignmentsByAssigner(ctx, caller.UserID)
	if err != nil {
		return nil, wrap("PracticeService.ListAssignedBy", err)
	}
	sortAssignments(assignments)
	return assignments, nil
}

// ListAttempts returns an assignment's attempts, newest first. Visible to the
// assigned child and therapists.
func (s *PracticeService) ListAttempts(ctx context.Context, caller models.Identity, assignmentID string) ([]models.PracticeAttempt, error) {
	const op = "PracticeService.ListAttempts"

	assignment, err := s.practice.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, wrap(op, err)
	}
	isOwner := caller.IsChild() && caller.UserID == assignment.ChildID
	if !isOwner && !caller.IsTherapist() {
		return nil, forbidden(op, "only the assigned child or a therapist can view attempts")
	}

	attempts, err := s.practice.ListAttempts(ctx, assignmentID)
	if err != nil {
		return nil, wrap(op, err)
	}
	sortNewestFirst(attempts, func(a models.PracticeAttempt) (int64, string) {
		return a.CreatedAt.UnixNano(), a.ID
	})
	return attempts, nil
}

func sortAssignments(assignments []models.PracticeAssignment) {
	sortNewestFirst(assignments, func(a models.PracticeAssignment) (int64, string) {
		return a.CreatedAt.UnixNano(), a.ID
	})
}
