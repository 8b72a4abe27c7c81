package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"talkquest/internal/models"
	"talkquest/internal/service"
)

// ProgressHandler serves the caller's own stats, streak, games and achievements
type ProgressHandler struct {
	stats        *service.StatsService
	streaks      *service.StreakService
	xp           *service.XPService
	achievements *service.AchievementService
	events       *service.EventLog
	logger       *zap.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(stats *service.StatsService, streaks *service.StreakService, xp *service.XPService, achievements *service.AchievementService, events *service.EventLog, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		stats:        stats,
		streaks:      streaks,
		xp:           xp,
		achievements: achievements,
		events:       events,
		logger:       logger,
	}
}

type gameStatsResponse struct {
	*models.UserGameStats
	Level int `json:"level"`
}

// GetStats returns the caller's combined stats snapshot
func (h *ProgressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	snapshot, err := h.stats.Snapshot(r.Context(), identity.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// TouchStreak registers practice for today
func (h *ProgressHandler) TouchStreak(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	state, err := h.streaks.Touch(r.Context(), identity.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// ResetStreak zeroes the caller's current streak
func (h *ProgressHandler) ResetStreak(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	state, err := h.streaks.Reset(r.Context(), identity.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// RecordGame credits a finished game
func (h *ProgressHandler) RecordGame(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	var game models.GameCompletion
	if err := decodeJSON(w, r, &game); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	stats, err := h.xp.RecordGameCompletion(r.Context(), identity.UserID, game)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, gameStatsResponse{UserGameStats: stats, Level: stats.Level()})
}

// ListAchievements returns the caller's achievements
func (h *ProgressHandler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	achievements, err := h.achievements.List(r.Context(), identity.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if achievements == nil {
		achievements = []models.Achievement{}
	}
	respondJSON(w, http.StatusOK, achievements)
}

// ListEvents returns the caller's recent activity, newest first
func (h *ProgressHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, h.logger, http.StatusBadRequest, "limit must be a positive integer", "", nil)
			return
		}
		limit = n
	}

	events, err := h.events.Recent(r.Context(), identity.UserID, limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []models.ActivityEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}
