package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"talkquest/internal/database"
	"talkquest/internal/models"
	"talkquest/internal/repository"
)

// StatsCache stores computed stats snapshots. Implementations must be safe
// for concurrent use.
type StatsCache interface {
	Get(ctx context.Context, userID string) (*models.StatsSnapshot, bool, error)
	Set(ctx context.Context, snapshot *models.StatsSnapshot, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
}

// NoopStatsCache never stores anything
type NoopStatsCache struct{}

func (NoopStatsCache) Get(context.Context, string) (*models.StatsSnapshot, bool, error) {
	return nil, false, nil
}

func (NoopStatsCache) Set(context.Context, *models.StatsSnapshot, time.Duration) error { return nil }

func (NoopStatsCache) Invalidate(context.Context, string) error { return nil }

// invalidator drops cached snapshots after a commit. Failures only cost a
// stale read until the TTL expires, so they are logged and swallowed.
type invalidator struct {
	cache  StatsCache
	logger *zap.Logger
}

func (i invalidator) invalidate(ctx context.Context, userID string) {
	if err := i.cache.Invalidate(context.WithoutCancel(ctx), userID); err != nil {
		i.logger.Warn("Failed to invalidate stats cache", zap.String("userID", userID), zap.Error(err))
	}
}

// StatsService serves the combined progress view of a user
type StatsService struct {
	stats  *repository.StatsRepository
	cache  StatsCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(db *database.DB, cache StatsCache, ttl time.Duration, logger *zap.Logger) *StatsService {
	if cache == nil {
		cache = NoopStatsCache{}
	}
	return &StatsService{
		stats:  repository.NewStatsRepository(db),
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Snapshot returns XP, level, counters and streak for a user. Users with no
// recorded activity get a zero snapshot at level 1.
func (s *StatsService) Snapshot(ctx context.Context, userID string) (*models.StatsSnapshot, error) {
	const op = "StatsService.Snapshot"

	if cached, ok, err := s.cache.Get(ctx, userID); err != nil {
		s.logger.Warn("Stats cache read failed", zap.String("userID", userID), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	snapshot := &models.StatsSnapshot{UserID: userID, Level: models.Level(0)}
	read := repository.StatsVersions{Game: -1, Goal: -1}

	game, err := s.stats.GetGameStats(ctx, userID)
	switch {
	case err == nil:
		snapshot.TotalXP = game.TotalXP
		snapshot.Level = game.Level()
		snapshot.GamesPlayed = game.GamesPlayed
		snapshot.Achievements = game.Achievements
		read.Game = game.Version
	case !errors.Is(err, repository.ErrNotFound):
		return nil, wrap(op, err)
	}

	goal, err := s.stats.GetGoalStats(ctx, userID)
	switch {
	case err == nil:
		snapshot.CurrentStreak = goal.CurrentStreak
		snapshot.BestStreak = goal.BestStreak
		snapshot.GoalsCompleted = goal.GoalsCompleted
		snapshot.TotalXPEarned = goal.TotalXPEarned
		snapshot.LastPractice = goal.LastPracticeDate
		read.Goal = goal.Version
	case !errors.Is(err, repository.ErrNotFound):
		return nil, wrap(op, err)
	}

	s.store(ctx, snapshot, read)
	return snapshot, nil
}

// store caches snapshot, then re-reads the row versions. A write that
// committed after the snapshot was read either shows up here, and the entry
// is dropped, or invalidates the entry itself once it commits.
func (s *StatsService) store(ctx context.Context, snapshot *models.StatsSnapshot, read repository.StatsVersions) {
	if _, noop := s.cache.(NoopStatsCache); noop {
		return
	}
	if err := s.cache.Set(ctx, snapshot, s.ttl); err != nil {
		s.logger.Warn("Stats cache write failed", zap.String("userID", snapshot.UserID), zap.Error(err))
		return
	}

	current, err := s.stats.GetVersions(ctx, snapshot.UserID)
	if err == nil && current == read {
		return
	}
	if err != nil {
		s.logger.Warn("Stats version check failed", zap.String("userID", snapshot.UserID), zap.Error(err))
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), snapshot.UserID); err != nil {
		s.logger.Warn("Failed to drop stale stats snapshot", zap.String("userID", snapshot.UserID), zap.Error(err))
	}
}
