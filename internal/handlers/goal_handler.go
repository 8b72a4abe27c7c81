package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"talkquest/internal/models"
	"talkquest/internal/service"
)

// GoalHandler handles goals assigned by parents and therapists
type GoalHandler struct {
	goals  *service.GoalService
	logger *zap.Logger
}

// NewGoalHandler creates a new goal handler
func NewGoalHandler(goals *service.GoalService, logger *zap.Logger) *GoalHandler {
	return &GoalHandler{goals: goals, logger: logger}
}

type assignGoalRequest struct {
	ChildID     string `json:"childId"`
	Title       string `json:"title"`
	TargetValue int    `json:"targetValue"`
	XPReward    int    `json:"xpReward"`
}

// Assign creates a goal for a child
func (h *GoalHandler) Assign(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	var req assignGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	goal, err := h.goals.Assign(r.Context(), identity, req.ChildID, req.Title, req.TargetValue, req.XPReward)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, goal)
}

// ListForChild lists a child's goals. Children may omit childId.
func (h *GoalHandler) ListForChild(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	goals, err := h.goals.ListForChild(r.Context(), identity, childIDParam(r, identity))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if goals == nil {
		goals = []models.AssignedGoal{}
	}
	respondJSON(w, http.StatusOK, goals)
}

// ListAssignedBy lists goals created by the caller
func (h *GoalHandler) ListAssignedBy(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	goals, err := h.goals.ListAssignedBy(r.Context(), identity)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if goals == nil {
		goals = []models.AssignedGoal{}
	}
	respondJSON(w, http.StatusOK, goals)
}

// UpdateProgress records progress on a goal
func (h *GoalHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	var update service.GoalUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	goal, err := h.goals.UpdateProgress(r.Context(), identity, r.PathValue("id"), update)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

// UpdateDetails edits an active goal
func (h *GoalHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	var details service.GoalDetails
	if err := decodeJSON(w, r, &details); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	goal, err := h.goals.UpdateDetails(r.Context(), identity, r.PathValue("id"), details)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

// Delete removes a goal
func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	if err := h.goals.Delete(r.Context(), identity, r.PathValue("id")); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
