package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talkquest/internal/database"
	"talkquest/internal/metrics"
	"talkquest/internal/models"
	"talkquest/internal/repository"
)

// GoalNotifier is told when a child completes a goal
type GoalNotifier interface {
	NotifyGoalCompleted(ctx context.Context, assigner, child *models.User, goal *models.AssignedGoal) error
}

// GoalService runs the assigned goal state machine: active -> completed.
// A goal completes when the child's progress reaches its target; the XP
// reward is credited in the same transaction as the transition.
type GoalService struct {
	db           *database.DB
	goals        *repository.GoalRepository
	stats        *repository.StatsRepository
	users        *repository.UserRepository
	access       access
	xp           *XPService
	achievements *AchievementService
	events       *EventLog
	notifier     GoalNotifier
	cache        invalidator
	clock        Clock
	logger       *zap.Logger

	// Milestones are granted as achievements on the number of completed goals.
	Milestones []Milestone
}

// NewGoalService creates a new goal service. notifier may be nil.
func NewGoalService(db *database.DB, xp *XPService, achievements *AchievementService, events *EventLog, notifier GoalNotifier, cache StatsCache, clock Clock, logger *zap.Logger) *GoalService {
	if cache == nil {
		cache = NoopStatsCache{}
	}
	users := repository.NewUserRepository(db)
	return &GoalService{
		db:           db,
		goals:        repository.NewGoalRepository(db),
		stats:        repository.NewStatsRepository(db),
		users:        users,
		access:       access{users: users},
		xp:           xp,
		achievements: achievements,
		events:       events,
		notifier:     notifier,
		cache:        invalidator{cache: cache, logger: logger},
		clock:        clock,
		logger:       logger,
		Milestones:   DefaultGoalMilestones,
	}
}

// GoalUpdate carries the optional fields of a progress update
type GoalUpdate struct {
	Progress *int               `json:"progress,omitempty"`
	Status   *models.GoalStatus `json:"status,omitempty"`
}

// GoalDetails carries the optional fields an assigner may change
type GoalDetails struct {
	Title       *string `json:"title,omitempty"`
	TargetValue *int    `json:"targetValue,omitempty"`
	XPReward    *int    `json:"xpReward,omitempty"`
}

// Assign creates a goal. Therapists may assign to any child, parents only to
// their linked children.
func (s *GoalService) Assign(ctx context.Context, caller models.Identity, childID, title string, targetValue, xpReward int) (*models.AssignedGoal, error) {
	const op = "GoalService.Assign"

	if !caller.IsTherapist() && !caller.IsParent() {
		return nil, forbidden(op, "only parents and therapists can assign goals")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalidArgument(op, "title is required")
	}
	if targetValue <= 0 || targetValue > maxStoredInt {
		return nil, invalidArgument(op, "targetValue must be between 1 and %d", maxStoredInt)
	}
	if xpReward < 0 || xpReward > maxStoredInt {
		return nil, invalidArgument(op, "xpReward must be between 0 and %d", maxStoredInt)
	}
	if caller.IsParent() {
		linked, err := s.access.isLinkedParent(ctx, caller, childID)
		if err != nil {
			return nil, wrap(op, err)
		}
		if !linked {
			return nil, forbidden(op, "parent is not linked to this child")
		}
	}
	if _, err := s.access.requireChild(ctx, op, childID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	goal := &models.AssignedGoal{
		ID:             uuid.NewString(),
		ChildID:        childID,
		AssignedBy:     caller.UserID,
		AssignedByRole: caller.Role,
		Title:          title,
		TargetValue:    targetValue,
		XPReward:       xpReward,
		Status:         models.GoalActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.goals.Create(ctx, goal); err != nil {
		return nil, wrap(op, err)
	}

	s.logger.Info("Goal assigned",
		zap.String("goalID", goal.ID),
		zap.String("childID", childID),
		zap.String("assignedBy", caller.UserID))
	return goal, nil
}

// UpdateProgress records the child's progress. The goal completes exactly
// when progress reaches the target; a requested status of completed is only
// checked against that rule. Updating a completed goal returns it unchanged.
func (s *GoalService) UpdateProgress(ctx context.Context, caller models.Identity, goalID string, update GoalUpdate) (*models.AssignedGoal, error) {
	const op = "GoalService.UpdateProgress"

	if update.Progress != nil && (*update.Progress < 0 || *update.Progress > maxStoredInt) {
		return nil, invalidArgument(op, "progress must be between 0 and %d", maxStoredInt)
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, invalidArgument(op, "status must be active or completed")
	}

	var goal *models.AssignedGoal
	var completed bool
	fx := &txEffects{}
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		repo := s.goals.WithTx(tx)

		var err error
		goal, err = repo.GetByID(ctx, goalID)
		if err != nil {
			return err
		}
		if !caller.IsChild() || caller.UserID != goal.ChildID {
			return forbidden(op, "only the assigned child can update progress")
		}
		if goal.IsCompleted() {
			return nil
		}

		progress := goal.Progress
		if update.Progress != nil {
			progress = *update.Progress
		}
		reachesTarget := progress >= goal.TargetValue

		if update.Status != nil {
			switch {
			case *update.Status == models.GoalCompleted && !reachesTarget:
				return invalidArgument(op, "progress %d has not reached target %d", progress, goal.TargetValue)
			case *update.Status == models.GoalActive && reachesTarget:
				return invalidArgument(op, "progress %d reaches target %d so the goal cannot stay active", progress, goal.TargetValue)
			}
		}

		now := s.clock.Now().UTC()
		if !reachesTarget {
			if progress == goal.Progress {
				return nil
			}
			ok, err := repo.UpdateProgress(ctx, goal.ID, progress, now)
			if err != nil {
				return err
			}
			if !ok {
				// Completed by another request since the read.
				goal, err = repo.GetByID(ctx, goal.ID)
				return err
			}
			goal.Progress = progress
			goal.Version++
			goal.UpdatedAt = now
			return nil
		}

		won, err := repo.Complete(ctx, goal.ID, progress, now)
		if err != nil {
			return err
		}
		if !won {
			// Another request completed it first and did the crediting.
			goal, err = repo.GetByID(ctx, goal.ID)
			return err
		}

		goal.Status = models.GoalCompleted
		goal.Progress = progress
		goal.CompletedAt = &now
		goal.UpdatedAt = now
		goal.Version++
		completed = true
		return s.completeTx(ctx, tx, fx, goal)
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	if completed {
		fx.run()
		metrics.GoalsCompletedTotal.Inc()
		s.logger.Info("Goal completed",
			zap.String("goalID", goal.ID),
			zap.String("childID", goal.ChildID),
			zap.Int("xpReward", goal.XPReward))
		s.notify(ctx, goal)
	}
	return goal, nil
}

// completeTx performs the side effects of a completed goal inside the
// transition's transaction.
func (s *GoalService) completeTx(ctx context.Context, tx *database.Tx, fx *txEffects, goal *models.AssignedGoal) error {
	if goal.XPReward > 0 {
		if _, err := s.xp.creditTx(ctx, tx, fx, goal.ChildID, goal.XPReward, models.XPSourceGoal); err != nil {
			return err
		}
	}

	statsRepo := s.stats.WithTx(tx)
	if err := statsRepo.AddGoalCompletion(ctx, goal.ChildID, goal.XPReward, s.clock.Now()); err != nil {
		return err
	}

	payload := map[string]interface{}{"goalId": goal.ID, "title": goal.Title, "xpReward": goal.XPReward}
	if _, err := s.events.appendTx(ctx, tx, goal.ChildID, models.EventGoalCompleted, goal.ID, payload); err != nil {
		return err
	}

	stats, err := statsRepo.GetGoalStats(ctx, goal.ChildID)
	if err != nil {
		return err
	}
	if err := s.achievements.grantMilestonesTx(ctx, tx, fx, goal.ChildID, s.Milestones, stats.GoalsCompleted); err != nil {
		return err
	}

	fx.add(func() { s.cache.invalidate(ctx, goal.ChildID) })
	return nil
}

// notify tells the assigner about a completed goal. Failures are logged only.
func (s *GoalService) notify(ctx context.Context, goal *models.AssignedGoal) {
	if s.notifier == nil {
		return
	}
	assigner, err := s.users.GetByID(ctx, goal.AssignedBy)
	if err != nil {
		s.logger.Warn("Goal notification skipped: assigner lookup failed", zap.String("goalID", goal.ID), zap.Error(err))
		return
	}
	if assigner.Email == "" {
		return
	}
	child, err := s.users.GetByID(ctx, goal.ChildID)
	if err != nil {
		s.logger.Warn("Goal notification skipped: child lookup failed", zap.String("goalID", goal.ID), zap.Error(err))
		return
	}
	if err := s.notifier.NotifyGoalCompleted(context.WithoutCancel(ctx), assigner, child, goal); err != nil {
		s.logger.Error("Failed to send goal completion notice", zap.String("goalID", goal.ID), zap.Error(err))
	}
}

// UpdateDetails lets the original assigner edit an active goal. Raising or
// lowering the target never completes the goal by itself.
func (s *GoalService) UpdateDetails(ctx context.Context, caller models.Identity, goalID string, details GoalDetails) (*models.AssignedGoal, error) {
	const op = "GoalService.UpdateDetails"

	if details.Title != nil && strings.TrimSpace(*details.Title) == "" {
		return nil, invalidArgument(op, "title must not be empty")
	}
	if details.TargetValue != nil && (*details.TargetValue <= 0 || *details.TargetValue > maxStoredInt) {
		return nil, invalidArgument(op, "targetValue must be between 1 and %d", maxStoredInt)
	}
	if details.XPReward != nil && (*details.XPReward < 0 || *details.XPReward > maxStoredInt) {
		return nil, invalidArgument(op, "xpReward must be between 0 and %d", maxStoredInt)
	}

	var goal *models.AssignedGoal
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		repo := s.goals.WithTx(tx)

		var err error
		goal, err = repo.GetByID(ctx, goalID)
		if err != nil {
			return err
		}
		if goal.AssignedBy != caller.UserID {
			return forbidden(op, "only the assigner can edit a goal")
		}
		if goal.IsCompleted() {
			return invalidArgument(op, "completed goals cannot be edited")
		}

		if details.Title != nil {
			goal.Title = strings.TrimSpace(*details.Title)
		}
		if details.TargetValue != nil {
			goal.TargetValue = *details.TargetValue
		}
		if details.XPReward != nil {
			goal.XPReward = *details.XPReward
		}

		now := s.clock.Now().UTC()
		ok, err := repo.UpdateDetails(ctx, goal, now)
		if err != nil {
			return err
		}
		if !ok {
			return invalidArgument(op, "completed goals cannot be edited")
		}
		goal.UpdatedAt = now
		goal.Version++
		return nil
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	return goal, nil
}

// Delete removes a goal. Only the original assigner may delete it and XP
// already credited for it is kept.
func (s *GoalService) Delete(ctx context.Context, caller models.Identity, goalID string) error {
	const op = "GoalService.Delete"

	return wrap(op, s.db.WithTx(ctx, func(tx *database.Tx) error {
		repo := s.goals.WithTx(tx)

		goal, err := repo.GetByID(ctx, goalID)
		if err != nil {
			return err
		}
		if goal.AssignedBy != caller.UserID {
			return forbidden(op, "only the assigner can delete a goal")
		}
		return repo.Delete(ctx, goalID)
	}))
}

// ListForChild returns a child's goals, newest first
func (s *GoalService) ListForChild(ctx context.Context, caller models.Identity, childID string) ([]models.AssignedGoal, error) {
	const op = "GoalService.ListForChild"

	if childID == "" {
		return nil, invalidArgument(op, "childId is required")
	}
	if err := s.access.authorizeChildView(ctx, op, caller, childID); err != nil {
		return nil, err
	}

	goals, err := s.goals.ListByChild(ctx, childID)
	if err != nil {
		return nil, wrap(op, err)
	}
	sortGoals(goals)
	return goals, nil
}

// ListAssignedBy returns the goals the caller created, newest first
func (s *GoalService) ListAssignedBy(ctx context.Context, caller models.Identity) ([]models.AssignedGoal, error) {
	goals, err := s.goals.ListByAssigner(ctx, caller.UserID)
	if err != nil {
		return nil, wrap("GoalService.ListAssignedBy", err)
	}
	sortGoals(goals)
	return goals, nil
}

func sortGoals(goals []models.AssignedGoal) {
	sortNewestFirst(goals, func(g models.AssignedGoal) (int64, string) {
		return g.CreatedAt.UnixNano(), g.ID
	})
}
