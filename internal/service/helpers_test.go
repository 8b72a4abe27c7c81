package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"talkquest/internal/database"
	"talkquest/internal/models"
	"talkquest/internal/repository"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db           *database.DB
	clock        *fixedClock
	users        *repository.UserRepository
	events       *EventLog
	xp           *XPService
	achievements *AchievementService
	streaks      *StreakService
	practice     *PracticeService
	goals        *GoalService
	stats        *StatsService
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.RunMigrations(context.Background())
	require.NoError(t, err)
	return db
}

// newTestEnv wires every service against a fresh database. Milestones are
// disabled so tests count XP precisely; tests that need them set them.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	clock := &fixedClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()

	events := NewEventLog(db, clock)
	xp := NewXPService(db, events, nil, clock, logger, 500)
	achievements := NewAchievementService(db, xp, events, nil, clock, logger)
	streaks := NewStreakService(db, achievements, events, nil, clock, time.UTC, logger)
	streaks.Milestones = nil
	goals := NewGoalService(db, xp, achievements, events, nil, nil, clock, logger)
	goals.Milestones = nil

	return &testEnv{
		db:           db,
		clock:        clock,
		users:        repository.NewUserRepository(db),
		events:       events,
		xp:           xp,
		achievements: achievements,
		streaks:      streaks,
		practice:     NewPracticeService(db, clock, logger),
		goals:        goals,
		stats:        NewStatsService(db, nil, time.Minute, logger),
	}
}

func (e *testEnv) addUser(t *testing.T, id string, role models.Role, children ...string) models.Identity {
	t.Helper()

	identity := models.Identity{UserID: id, Role: role, Name: id, Email: id + "@example.com", Children: children}
	require.NoError(t, e.users.SyncIdentity(context.Background(), identity, e.clock.Now()))
	return identity
}

func (e *testEnv) totalXP(t *testing.T, userID string) int {
	t.Helper()

	snapshot, err := e.stats.Snapshot(context.Background(), userID)
	require.NoError(t, err)
	return snapshot.TotalXP
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
