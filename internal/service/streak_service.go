package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"talkquest/internal/database"
	"talkquest/internal/metrics"
	"talkquest/internal/models"
	"talkquest/internal/repository"
)

// maxCASAttempts bounds the compare-and-swap retries on a stats row
const maxCASAttempts = 5

// Streak touch outcomes
const (
	streakCreated   = "created"
	streakSameDay   = "same_day"
	streakExtended  = "extended"
	streakRestarted = "restarted"
)

// StreakService tracks consecutive practice days. Days are calendar dates in
// the configured reference zone.
type StreakService struct {
	db           *database.DB
	stats        *repository.StatsRepository
	achievements *AchievementService
	events       *EventLog
	cache        invalidator
	clock        Clock
	location     *time.Location
	logger       *zap.Logger

	// Milestones are granted as achievements when a streak reaches them.
	Milestones []Milestone
}

// NewStreakService creates a new streak service
func NewStreakService(db *database.DB, achievements *AchievementService, events *EventLog, cache StatsCache, clock Clock, location *time.Location, logger *zap.Logger) *StreakService {
	if cache == nil {
		cache = NoopStatsCache{}
	}
	if location == nil {
		location = time.UTC
	}
	return &StreakService{
		db:           db,
		stats:        repository.NewStatsRepository(db),
		achievements: achievements,
		events:       events,
		cache:        invalidator{cache: cache, logger: logger},
		clock:        clock,
		location:     location,
		logger:       logger,
		Milestones:   DefaultStreakMilestones,
	}
}

// Today returns the current calendar day in the reference zone
func (s *StreakService) Today() models.Date {
	return today(s.clock, s.location)
}

// Touch registers practice for the current day
func (s *StreakService) Touch(ctx context.Context, userID string) (*models.StreakState, error) {
	return s.TouchOn(ctx, userID, s.Today())
}

// TouchOn registers practice on day. Touching the same day twice is a no-op.
func (s *StreakService) TouchOn(ctx context.Context, userID string, day models.Date) (*models.StreakState, error) {
	const op = "StreakService.Touch"

	if userID == "" {
		return nil, invalidArgument(op, "user id is required")
	}
	if day.IsZero() {
		return nil, invalidArgument(op, "day is required")
	}

	return s.withRetry(ctx, op, "streak_touch", func(tx *database.Tx, fx *txEffects) (*models.StreakState, bool, error) {
		return s.touchTx(ctx, tx, fx, userID, day)
	})
}

// touchTx applies one touch attempt. retry is true when a concurrent writer
// changed the row between read and write.
func (s *StreakService) touchTx(ctx context.Context, tx *database.Tx, fx *txEffects, userID string, day models.Date) (state *models.StreakState, retry bool, err error) {
	repo := s.stats.WithTx(tx)
	now := s.clock.Now()

	current, err := repo.GetGoalStats(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		next := models.StreakState{CurrentStreak: 1, BestStreak: 1, LastPracticeDate: day}
		created, err := repo.CreateGoalStats(ctx, &models.UserGoalStats{
			UserID:           userID,
			CurrentStreak:    next.CurrentStreak,
			BestStreak:       next.BestStreak,
			LastPracticeDate: day,
			UpdatedAt:        now,
		})
		if err != nil {
			return nil, false, err
		}
		if !created {
			return nil, true, nil
		}
		return &next, false, s.afterTouchTx(ctx, tx, fx, userID, next, streakCreated)
	}
	if err != nil {
		return nil, false, err
	}

	next, outcome := NextStreak(streakState(current), day)
	if outcome == streakSameDay {
		fx.add(func() { metrics.StreakTouchesTotal.WithLabelValues(outcome).Inc() })
		return &next, false, nil
	}

	ok, err := repo.UpdateStreak(ctx, userID, current.Version, next, now)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, true, nil
	}
	return &next, false, s.afterTouchTx(ctx, tx, fx, userID, next, outcome)
}

func (s *StreakService) afterTouchTx(ctx context.Context, tx *database.Tx, fx *txEffects, userID string, state models.StreakState, outcome string) error {
	payload := map[string]interface{}{
		"day":           state.LastPracticeDate.String(),
		"currentStreak": state.CurrentStreak,
		"bestStreak":    state.BestStreak,
		"outcome":       outcome,
	}
	if _, err := s.events.appendTx(ctx, tx, userID, models.EventPracticeTouch, "", payload); err != nil {
		return err
	}
	if err := s.achievements.grantMilestonesTx(ctx, tx, fx, userID, s.Milestones, state.CurrentStreak); err != nil {
		return err
	}

	fx.add(func() {
		metrics.StreakTouchesTotal.WithLabelValues(outcome).Inc()
		s.cache.invalidate(ctx, userID)
	})
	return nil
}

func streakState(stats *models.UserGoalStats) models.StreakState {
	return models.StreakState{
		CurrentStreak:    stats.CurrentStreak,
		BestStreak:       stats.BestStreak,
		LastPracticeDate: stats.LastPracticeDate,
	}
}

// NextStreak computes the streak after practising on day. The returned
// outcome names the rule that applied.
func NextStreak(prev models.StreakState, day models.Date) (models.StreakState, string) {
	gap := -1
	if !prev.LastPracticeDate.IsZero() {
		gap = day.DaysSince(prev.LastPracticeDate)
	}
	switch gap {
	case 0:
		return prev, streakSameDay
	case 1:
		current := prev.CurrentStreak + 1
		return models.StreakState{
			CurrentStreak:    current,
			BestStreak:       max(prev.BestStreak, current),
			LastPracticeDate: day,
		}, streakExtended
	default:
		return models.StreakState{
			CurrentStreak:    1,
			BestStreak:       max(prev.BestStreak, 1),
			LastPracticeDate: day,
		}, streakRestarted
	}
}

// Reset sets the current streak to zero and keeps the best streak
func (s *StreakService) Reset(ctx context.Context, userID string) (*models.StreakState, error) {
	const op = "StreakService.Reset"
	day := s.Today()

	return s.withRetry(ctx, op, "streak_reset", func(tx *database.Tx, fx *txEffects) (*models.StreakState, bool, error) {
		repo := s.stats.WithTx(tx)

		current, err := repo.GetGoalStats(ctx, userID)
		if err != nil {
			return nil, false, err
		}

		next := models.StreakState{CurrentStreak: 0, BestStreak: current.BestStreak, LastPracticeDate: day}
		ok, err := repo.UpdateStreak(ctx, userID, current.Version, next, s.clock.Now())
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, true, nil
		}

		payload := map[string]interface{}{"day": day.String(), "previousStreak": current.CurrentStreak}
		if _, err := s.events.appendTx(ctx, tx, userID, models.EventStreakReset, "", payload); err != nil {
			return nil, false, err
		}
		fx.add(func() { s.cache.invalidate(ctx, userID) })
		return &next, false, nil
	})
}

// withRetry runs fn in a fresh transaction until it succeeds without a
// version conflict or maxCASAttempts is used up.
func (s *StreakService) withRetry(ctx context.Context, op, label string, fn func(tx *database.Tx, fx *txEffects) (*models.StreakState, bool, error)) (*models.StreakState, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		var state *models.StreakState
		var retry bool
		fx := &txEffects{}

		err := s.db.WithTx(ctx, func(tx *database.Tx) error {
			var err error
			state, retry, err = fn(tx, fx)
			return err
		})
		if err != nil {
			return nil, wrap(op, err)
		}
		if !retry {
			fx.run()
			return state, nil
		}

		metrics.ConcurrentConflictsTotal.WithLabelValues(label).Inc()
		s.logger.Debug("Streak version conflict, retrying", zap.String("op", op), zap.Int("attempt", attempt))
	}
	return nil, &Error{Op: op, Kind: ErrConcurrentModification, Message: "too many concurrent updates"}
}

// LapseInactive zeroes the current streak of users who did not practise
// yesterday or today. It returns the number of streaks reset.
func (s *StreakService) LapseInactive(ctx context.Context, day models.Date) (int64, error) {
	const op = "StreakService.LapseInactive"
	cutoff := day.AddDays(-1)

	var userIDs []string
	var lapsed int64
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		repo := s.stats.WithTx(tx)
		var err error
		if userIDs, err = repo.ListLapsing(ctx, cutoff); err != nil {
			return err
		}
		lapsed, err = repo.LapseStreaks(ctx, cutoff, s.clock.Now())
		return err
	})
	if err != nil {
		return 0, wrap(op, err)
	}

	for _, id := range userIDs {
		s.cache.invalidate(ctx, id)
	}
	metrics.StreaksLapsedTotal.Add(float64(lapsed))
	s.logger.Info("Lapsed inactive streaks", zap.String("day", day.String()), zap.Int64("count", lapsed))
	return lapsed, nil
}
