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

// AchievementService unlocks achievements. A user holds each achievement
// type at most once, so granting is idempotent.
type AchievementService struct {
	db           *database.DB
	achievements *repository.AchievementRepository
	stats        *repository.StatsRepository
	users        *repository.UserRepository
	xp           *XPService
	events       *EventLog
	cache        invalidator
	clock        Clock
	logger       *zap.Logger
}

// NewAchievementService creates a new achievement service
func NewAchievementService(db *database.DB, xp *XPService, events *EventLog, cache StatsCache, clock Clock, logger *zap.Logger) *AchievementService {
	if cache == nil {
		cache = NoopStatsCache{}
	}
	return &AchievementService{
		db:           db,
		achievements: repository.NewAchievementRepository(db),
		stats:        repository.NewStatsRepository(db),
		users:        repository.NewUserRepository(db),
		xp:           xp,
		events:       events,
		cache:        invalidator{cache: cache, logger: logger},
		clock:        clock,
		logger:       logger,
	}
}

// Grant unlocks achievementType for the user. When the user already holds it
// the stored record is returned with created=false and nothing else changes.
func (s *AchievementService) Grant(ctx context.Context, userID, achievementType, description string, xpReward int) (*models.Achievement, bool, error) {
	const op = "AchievementService.Grant"

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, false, wrap(op, err)
	}

	var achievement *models.Achievement
	var created bool
	fx := &txEffects{}
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		achievement, created, err = s.grantTx(ctx, tx, fx, userID, achievementType, description, xpReward)
		return err
	})
	if err != nil {
		return nil, false, wrap(op, err)
	}
	fx.run()
	return achievement, created, nil
}

// grantTx performs the conditional create inside an open transaction
func (s *AchievementService) grantTx(ctx context.Context, tx *database.Tx, fx *txEffects, userID, achievementType, description string, xpReward int) (*models.Achievement, bool, error) {
	const op = "AchievementService.Grant"

	achievementType = strings.TrimSpace(achievementType)
	if achievementType == "" {
		return nil, false, invalidArgument(op, "achievementType is required")
	}
	if xpReward < 0 || xpReward > maxStoredInt {
		return nil, false, invalidArgument(op, "xpReward must be between 0 and %d", maxStoredInt)
	}

	repo := s.achievements.WithTx(tx)
	achievement := &models.Achievement{
		ID:              uuid.NewString(),
		UserID:          userID,
		AchievementType: achievementType,
		Description:     strings.TrimSpace(description),
		XPReward:        xpReward,
		CreatedAt:       s.clock.Now().UTC(),
	}

	created, err := repo.CreateIfAbsent(ctx, achievement)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := repo.GetByType(ctx, userID, achievementType)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := s.stats.WithTx(tx).AddGameCounters(ctx, userID, 0, 1, s.clock.Now()); err != nil {
		return nil, false, err
	}
	if xpReward > 0 {
		if _, err := s.xp.creditTx(ctx, tx, fx, userID, xpReward, models.XPSourceAchievement); err != nil {
			return nil, false, err
		}
	}

	payload := map[string]interface{}{"achievementType": achievementType, "xpReward": xpReward}
	if _, err := s.events.appendTx(ctx, tx, userID, models.EventAchievementGranted, achievementType, payload); err != nil {
		return nil, false, err
	}

	fx.add(func() {
		metrics.AchievementsGrantedTotal.Inc()
		s.cache.invalidate(ctx, userID)
		s.logger.Info("Achievement granted",
			zap.String("userID", userID), zap.String("type", achievementType), zap.Int("xpReward", xpReward))
	})
	return achievement, true, nil
}

// grantMilestonesTx grants every milestone reached by value
func (s *AchievementService) grantMilestonesTx(ctx context.Context, tx *database.Tx, fx *txEffects, userID string, milestones []Milestone, value int) error {
	for _, m := range reached(milestones, value) {
		if _, _, err := s.grantTx(ctx, tx, fx, userID, m.Type, m.Description, m.XPReward); err != nil {
			return err
		}
	}
	return nil
}

// List returns a user's achievements, newest first
func (s *AchievementService) List(ctx context.Context, userID string) ([]models.Achievement, error) {
	achievements, err := s.achievements.ListByUser(ctx, userID)
	if err != nil {
		return nil, wrap("AchievementService.List", err)
	}
	sortNewestFirst(achievements, func(a models.Achievement) (int64, string) {
		return a.CreatedAt.UnixNano(), a.ID
	})
	return achievements, nil
}
