package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"talkquest/internal/models"
	"talkquest/internal/service"
)

// InternalHandler serves routes called by other backend services
type InternalHandler struct {
	achievements *service.AchievementService
	logger       *zap.Logger
}

// NewInternalHandler creates a new internal handler
func NewInternalHandler(achievements *service.AchievementService, logger *zap.Logger) *InternalHandler {
	return &InternalHandler{achievements: achievements, logger: logger}
}

type grantAchievementRequest struct {
	AchievementType string `json:"achievementType"`
	Description     string `json:"description"`
	XPReward        int    `json:"xpReward"`
}

type grantAchievementResponse struct {
	Achievement *models.Achievement `json:"achievement"`
	Granted     bool                `json:"granted"`
}

// GrantAchievement unlocks an achievement for a user. Repeating a grant is
// reported with granted=false.
func (h *InternalHandler) GrantAchievement(w http.ResponseWriter, r *http.Request) {
	var req grantAchievementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	achievement, granted, err := h.achievements.Grant(r.Context(), r.PathValue("userId"), req.AchievementType, req.Description, req.XPReward)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if granted {
		status = http.StatusCreated
	}
	respondJSON(w, status, grantAchievementResponse{Achievement: achievement, Granted: granted})
}
