package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkquest/internal/models"
)

func TestStreakRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/me/streak/touch", &childIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[models.StreakState](t, rec)
	assert.Equal(t, 1, state.CurrentStreak)
	assert.Equal(t, 1, state.BestStreak)

	rec = srv.do(t, http.MethodPost, "/api/me/streak/touch", &childIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[models.StreakState](t, rec).CurrentStreak, "same day touch is a no-op")

	rec = srv.do(t, http.MethodPost, "/api/me/streak/reset", &childIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeBody[models.StreakState](t, rec)
	assert.Equal(t, 0, state.CurrentStreak)
	assert.Equal(t, 1, state.BestStreak)

	rec = srv.do(t, http.MethodPost, "/api/me/streak/reset", &therapistIdentity, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no streak to reset")
}

func TestGameRoutes(t *testing.T) {
	srv := newTestServer(t)
	game := models.GameCompletion{GameID: "g-1", XPEarned: 400, AchievementsDelta: 1}

	rec := srv.do(t, http.MethodPost, "/api/me/games", &childIdentity, game)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]interface{}](t, rec)
	assert.EqualValues(t, 400, body["totalXP"])
	assert.EqualValues(t, 1, body["gamesPlayed"])
	assert.EqualValues(t, 1, body["level"])

	rec = srv.do(t, http.MethodPost, "/api/me/games", &childIdentity, game)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody[map[string]interface{}](t, rec)["gamesPlayed"], "repeated game id is ignored")

	rec = srv.do(t, http.MethodPost, "/api/me/games", &childIdentity, models.GameCompletion{GameID: "g-2", XPEarned: 700})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "xp above the per-game cap")

	rec = srv.do(t, http.MethodPost, "/api/me/games", &childIdentity, map[string]interface{}{"xpEarned": 10, "bonus": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = srv.do(t, http.MethodPost, "/api/me/games", &therapistIdentity, game)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/me/stats", &childIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decodeBody[models.StatsSnapshot](t, rec)
	assert.Equal(t, 400, snapshot.TotalXP)
	assert.Equal(t, 1, snapshot.Achievements)

	rec = srv.do(t, http.MethodGet, "/api/me/events", &childIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]models.ActivityEvent](t, rec)
	require.NotEmpty(t, events)

	kinds := make(map[models.EventKind]bool)
	for _, e := range events {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[models.EventGameCompleted])
	assert.True(t, kinds[models.EventXPCredited])

	rec = srv.do(t, http.MethodGet, "/api/me/events?limit=abc", &childIdentity, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAchievementRoutes(t *testing.T) {
	srv := newTestServer(t)
	srv.sync(t, childIdentity)

	grant := func() int {
		req := jsonRequest(t, http.MethodPost, "/internal/users/child-1/achievements", map[string]interface{}{
			"achievementType": "first_sentence",
			"description":     "Said a full sentence",
			"xpReward":        50,
		})
		req.Header.Set(InternalTokenHeader, testInternalToken)
		return serve(srv, req).Code
	}

	assert.Equal(t, http.StatusCreated, grant())
	assert.Equal(t, http.StatusOK, grant(), "second grant is a no-op")

	rec := srv.do(t, http.MethodGet, "/api/me/achievements", &childIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	achievements := decodeBody[[]models.Achievement](t, rec)
	require.Len(t, achievements, 1)
	assert.Equal(t, "first_sentence", achievements[0].AchievementType)

	rec = srv.do(t, http.MethodGet, "/api/me/stats", &childIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, decodeBody[models.StatsSnapshot](t, rec).TotalXP)

	req := jsonRequest(t, http.MethodPost, "/internal/users/nobody/achievements", map[string]interface{}{
		"achievementType": "x", "description": "x", "xpReward": 1,
	})
	req.Header.Set(InternalTokenHeader, testInternalToken)
	assert.Equal(t, http.StatusNotFound, serve(srv, req).Code)

	rec = srv.do(t, http.MethodGet, "/api/me/achievements", &therapistIdentity, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
