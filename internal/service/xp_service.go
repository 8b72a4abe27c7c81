package service

import (
	"context"

	"go.uber.org/zap"

	"talkquest/internal/database"
	"talkquest/internal/metrics"
	"talkquest/internal/models"
	"talkquest/internal/repository"
)

// XPService is the ledger of experience points. XP only ever increases.
type XPService struct {
	db        *database.DB
	stats     *repository.StatsRepository
	events    *EventLog
	cache     invalidator
	clock     Clock
	logger    *zap.Logger
	maxGameXP int
}

// NewXPService creates a new XP service. maxGameXP caps the XP a single game may award.
func NewXPService(db *database.DB, events *EventLog, cache StatsCache, clock Clock, logger *zap.Logger, maxGameXP int) *XPService {
	if cache == nil {
		cache = NoopStatsCache{}
	}
	return &XPService{
		db:        db,
		stats:     repository.NewStatsRepository(db),
		events:    events,
		cache:     invalidator{cache: cache, logger: logger},
		clock:     clock,
		logger:    logger,
		maxGameXP: maxGameXP,
	}
}

// Credit adds amount XP to the user and returns the new total
func (s *XPService) Credit(ctx context.Context, userID string, amount int, source models.XPSource) (int, error) {
	const op = "XPService.Credit"

	var total int
	fx := &txEffects{}
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		total, err = s.creditTx(ctx, tx, fx, userID, amount, source)
		return err
	})
	if err != nil {
		return 0, wrap(op, err)
	}
	fx.run()
	return total, nil
}

// creditTx credits XP inside an open transaction
func (s *XPService) creditTx(ctx context.Context, tx *database.Tx, fx *txEffects, userID string, amount int, source models.XPSource) (int, error) {
	const op = "XPService.Credit"

	if userID == "" {
		return 0, invalidArgument(op, "user id is required")
	}
	if amount <= 0 || amount > maxStoredInt {
		return 0, invalidArgument(op, "amount must be between 1 and %d, got %d", maxStoredInt, amount)
	}
	if !source.Valid() {
		return 0, invalidArgument(op, "unknown xp source %q", source)
	}

	total, err := s.stats.WithTx(tx).AddXP(ctx, userID, amount, s.clock.Now())
	if err != nil {
		return 0, err
	}

	payload := map[string]interface{}{"amount": amount, "source": source, "newTotal": total}
	if _, err := s.events.appendTx(ctx, tx, userID, models.EventXPCredited, "", payload); err != nil {
		return 0, err
	}

	fx.add(func() {
		metrics.XPCreditedTotal.WithLabelValues(string(source)).Add(float64(amount))
		s.cache.invalidate(ctx, userID)
	})
	return total, nil
}

// RecordGameCompletion counts one finished game, credits its XP and adds any
// achievements the game unlocked. A repeated GameID is accepted without
// counting the game again.
func (s *XPService) RecordGameCompletion(ctx context.Context, userID string, game models.GameCompletion) (*models.UserGameStats, error) {
	const op = "XPService.RecordGameCompletion"

	if game.XPEarned < 0 {
		return nil, invalidArgument(op, "xpEarned must not be negative")
	}
	if game.XPEarned > s.maxGameXP {
		return nil, invalidArgument(op, "xpEarned exceeds the per-game limit of %d", s.maxGameXP)
	}
	if game.AchievementsDelta < 0 || game.AchievementsDelta > maxStoredInt {
		return nil, invalidArgument(op, "achievementsDelta must be between 0 and %d", maxStoredInt)
	}

	var stats *models.UserGameStats
	var recorded bool
	fx := &txEffects{}
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		recorded, err = s.events.appendTx(ctx, tx, userID, models.EventGameCompleted, game.GameID, game)
		if err != nil {
			return err
		}

		statsRepo := s.stats.WithTx(tx)
		if recorded {
			if err := statsRepo.AddGameCounters(ctx, userID, 1, game.AchievementsDelta, s.clock.Now()); err != nil {
				return err
			}
			if game.XPEarned > 0 {
				if _, err := s.creditTx(ctx, tx, fx, userID, game.XPEarned, models.XPSourceGame); err != nil {
					return err
				}
			}
		}

		stats, err = statsRepo.GetGameStats(ctx, userID)
		return err
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	if !recorded {
		s.logger.Info("Duplicate game completion ignored",
			zap.String("userID", userID), zap.String("gameID", game.GameID))
		return stats, nil
	}

	fx.run()
	metrics.GamesCompletedTotal.Inc()
	s.cache.invalidate(ctx, userID)
	return stats, nil
}
