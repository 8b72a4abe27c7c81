package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkquest/internal/database"
	"talkquest/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.RunMigrations(context.Background())
	require.NoError(t, err)
	return db
}

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestUserRepositorySyncIdentity(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	parent := models.Identity{UserID: "p1", Role: models.RoleParent, Name: "Pat", Children: []string{"c1", "c2"}}
	require.NoError(t, repo.SyncIdentity(ctx, parent, baseTime))
	// Syncing twice must not fail on existing rows
	parent.Name = "Patricia"
	require.NoError(t, repo.SyncIdentity(ctx, parent, baseTime.Add(time.Hour)))

	user, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Patricia", user.DisplayName)
	assert.Equal(t, models.RoleParent, user.Role)

	linked, err := repo.IsLinked(ctx, "p1", "c2")
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = repo.IsLinked(ctx, "p1", "c3")
	require.NoError(t, err)
	assert.False(t, linked)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepositorySyncReplacesLinks(t *testing.T) {
	tests := []struct {
		name     string
		resync   []string
		linked   []string
		unlinked []string
	}{
		{name: "child dropped", resync: []string{"c2"}, linked: []string{"c2"}, unlinked: []string{"c1"}},
		{name: "child added", resync: []string{"c1", "c2", "c3"}, linked: []string{"c1", "c2", "c3"}},
		{name: "no children", resync: nil, unlinked: []string{"c1", "c2"}},
		{name: "blank ids ignored", resync: []string{"", "c1"}, linked: []string{"c1"}, unlinked: []string{"c2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			repo := NewUserRepository(db)
			ctx := context.Background()

			parent := models.Identity{UserID: "p1", Role: models.RoleParent, Children: []string{"c1", "c2"}}
			require.NoError(t, repo.SyncIdentity(ctx, parent, baseTime))
			// another parent's links are untouched
			other := models.Identity{UserID: "p2", Role: models.RoleParent, Children: []string{"c1"}}
			require.NoError(t, repo.SyncIdentity(ctx, other, baseTime))

			parent.Children = tt.resync
			require.NoError(t, repo.SyncIdentity(ctx, parent, baseTime.Add(time.Hour)))

			for _, childID := range tt.linked {
				linked, err := repo.IsLinked(ctx, "p1", childID)
				require.NoError(t, err)
				assert.True(t, linked, childID)
			}
			for _, childID := range tt.unlinked {
				linked, err := repo.IsLinked(ctx, "p1", childID)
				require.NoError(t, err)
				assert.False(t, linked, childID)
			}

			linked, err := repo.IsLinked(ctx, "p2", "c1")
			require.NoError(t, err)
			assert.True(t, linked)
		})
	}
}

func TestStatsRepositoryAddXP(t *testing.T) {
	db := newTestDB(t)
	repo := NewStatsRepository(db)
	ctx := context.Background()

	_, err := repo.GetGameStats(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	total, err := repo.AddXP(ctx, "u1", 40, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 40, total)

	total, err = repo.AddXP(ctx, "u1", 60, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 100, total)

	require.NoError(t, repo.AddGameCounters(ctx, "u1", 1, 2, baseTime))

	stats, err := repo.GetGameStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 100, stats.TotalXP)
	assert.Equal(t, 1, stats.GamesPlayed)
	assert.Equal(t, 2, stats.Achievements)
	assert.Equal(t, 3, stats.Version)
}

func TestStatsRepositoryStreakCAS(t *testing.T) {
	db := newTestDB(t)
	repo := NewStatsRepository(db)
	ctx := context.Background()
	today := models.NewDate(2024, time.June, 1)

	created, err := repo.CreateGoalStats(ctx, &models.UserGoalStats{
		UserID: "u1", CurrentStreak: 1, BestStreak: 1, LastPracticeDate: today, UpdatedAt: baseTime,
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateGoalStats(ctx, &models.UserGoalStats{UserID: "u1", UpdatedAt: baseTime})
	require.NoError(t, err)
	assert.False(t, created)

	stats, err := repo.GetGoalStats(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, stats.LastPracticeDate.Equal(today))

	next := models.StreakState{CurrentStreak: 2, BestStreak: 2, LastPracticeDate: today.AddDays(1)}
	ok, err := repo.UpdateStreak(ctx, "u1", stats.Version, next, baseTime)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same expected version again loses the race
	ok, err = repo.UpdateStreak(ctx, "u1", stats.Version, next, baseTime)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatsRepositoryLapseStreaks(t *testing.T) {
	db := newTestDB(t)
	repo := NewStatsRepository(db)
	ctx := context.Background()
	today := models.NewDate(2024, time.June, 10)

	rows := []models.UserGoalStats{
		{UserID: "fresh", CurrentStreak: 3, BestStreak: 3, LastPracticeDate: today.AddDays(-1)},
		{UserID: "stale", CurrentStreak: 5, BestStreak: 8, LastPracticeDate: today.AddDays(-2)},
		{UserID: "zero", CurrentStreak: 0, BestStreak: 2, LastPracticeDate: today.AddDays(-9)},
	}
	for i := range rows {
		rows[i].UpdatedAt = baseTime
		_, err := repo.CreateGoalStats(ctx, &rows[i])
		require.NoError(t, err)
	}

	n, err := repo.LapseStreaks(ctx, today.AddDays(-1), baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stale, err := repo.GetGoalStats(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, 0, stale.CurrentStreak)
	assert.Equal(t, 8, stale.BestStreak)
	assert.True(t, stale.LastPracticeDate.Equal(today.AddDays(-2)))

	fresh, err := repo.GetGoalStats(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.CurrentStreak)
}

func TestGoalRepositoryCompleteOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewGoalRepository(db)
	ctx := context.Background()

	goal := &models.AssignedGoal{
		ID: uuid.NewString(), ChildID: "c1", AssignedBy: "t1", AssignedByRole: models.RoleTherapist,
		Title: "Say ten words", TargetValue: 10, XPReward: 50, Status: models.GoalActive,
		CreatedAt: baseTime, UpdatedAt: baseTime,
	}
	require.NoError(t, repo.Create(ctx, goal))

	won, err := repo.Complete(ctx, goal.ID, 10, baseTime)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Complete(ctx, goal.ID, 12, baseTime)
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.GetByID(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GoalCompleted, stored.Status)
	assert.Equal(t, 10, stored.Progress)
	require.NotNil(t, stored.CompletedAt)

	updated, err := repo.UpdateProgress(ctx, goal.ID, 3, baseTime)
	require.NoError(t, err)
	assert.False(t, updated)

	require.NoError(t, repo.Delete(ctx, goal.ID))
	assert.ErrorIs(t, repo.Delete(ctx, goal.ID), ErrNotFound)
}

func TestPracticeRepositoryListOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewPracticeRepository(db)
	ctx := context.Background()

	ids := []string{"a", "b", "c"}
	for i, id := range ids {
		created := baseTime
		if i == 2 {
			created = baseTime.Add(time.Minute)
		}
		require.NoError(t, repo.CreateAssignment(ctx, &models.PracticeAssignment{
			ID: id, ChildID: "c1", AssignedBy: "t1", Type: models.PracticeWord, Text: "cat",
			Status: models.PracticeActive, CreatedAt: created, UpdatedAt: created,
		}))
	}

	list, err := repo.ListAssignmentsByChild(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	// Newest first, ties broken by id descending
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].ID, list[1].ID, list[2].ID})

	score := 0.75
	require.NoError(t, repo.UpdateAssignmentState(ctx, "a", models.PracticeAttempted, &score, baseTime))
	a, err := repo.GetAssignment(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, a.LatestScore)
	assert.InDelta(t, 0.75, *a.LatestScore, 1e-9)

	changed, err := repo.MarkCompleted(ctx, "b", baseTime)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.MarkCompleted(ctx, "b", baseTime)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestAchievementRepositoryUnique(t *testing.T) {
	db := newTestDB(t)
	repo := NewAchievementRepository(db)
	ctx := context.Background()

	first := &models.Achievement{ID: "a1", UserID: "u1", AchievementType: "streak_3", XPReward: 10, CreatedAt: baseTime}
	created, err := repo.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &models.Achievement{ID: "a2", UserID: "u1", AchievementType: "streak_3", CreatedAt: baseTime}
	created, err = repo.CreateIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.GetByType(ctx, "u1", "streak_3")
	require.NoError(t, err)
	assert.Equal(t, "a1", stored.ID)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEventRepositoryDedupe(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	payload, _ := json.Marshal(map[string]int{"xpEarned": 10})
	event := func(id, key string) *models.ActivityEvent {
		return &models.ActivityEvent{
			ID: id, UserID: "u1", Kind: models.EventGameCompleted, DedupeKey: key,
			Payload: payload, CreatedAt: baseTime,
		}
	}

	ok, err := repo.Append(ctx, event("e1", "game-1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Append(ctx, event("e2", "game-1"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Events without a key are never deduplicated
	for _, id := range []string{"e3", "e4"} {
		ok, err = repo.Append(ctx, event(id, ""))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	events, err := repo.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.JSONEq(t, `{"xpEarned":10}`, string(events[0].Payload))
}
