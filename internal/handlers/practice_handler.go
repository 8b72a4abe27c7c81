package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"talkquest/internal/models"
	"talkquest/internal/service"
)

// PracticeHandler handles therapist practice assignments and attempts
type PracticeHandler struct {
	practice *service.PracticeService
	logger   *zap.Logger
}

// NewPracticeHandler creates a new practice handler
func NewPracticeHandler(practice *service.PracticeService, logger *zap.Logger) *PracticeHandler {
	return &PracticeHandler{practice: practice, logger: logger}
}

type assignPracticeRequest struct {
	ChildID string              `json:"childId"`
	Type    models.PracticeType `json:"type"`
	Text    string              `json:"text"`
}

type recordAttemptRequest struct {
	Score         *float64 `json:"score"`
	PredictedText string   `json:"predictedText"`
}

// Assign creates a practice assignment
func (h *PracticeHandler) Assign(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	var req assignPracticeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	assignment, err := h.practice.Assign(r.Context(), identity, req.ChildID, req.Type, req.Text)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, assignment)
}

// ListForChild lists a child's assignments. Children may omit childId.
func (h *PracticeHandler) ListForChild(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	assignments, err := h.practice.ListForChild(r.Context(), identity, childIDParam(r, identity))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if assignments == nil {
		assignments = []models.PracticeAssignment{}
	}
	respondJSON(w, http.StatusOK, assignments)
}

// ListAssignedBy lists assignments created by the caller
func (h *PracticeHandler) ListAssignedBy(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	assignments, err := h.practice.ListAssignedBy(r.Context(), identity)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if assignments == nil {
		assignments = []models.PracticeAssignment{}
	}
	respondJSON(w, http.StatusOK, assignments)
}

// RecordAttempt stores an attempt at an assignment
func (h *PracticeHandler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	var req recordAttemptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	result, err := h.practice.RecordAttempt(r.Context(), identity, r.PathValue("id"), req.Score, req.PredictedText)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// ListAttempts lists the attempts of an assignment
func (h *PracticeHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	attempts, err := h.practice.ListAttempts(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if attempts == nil {
		attempts = []models.PracticeAttempt{}
	}
	respondJSON(w, http.StatusOK, attempts)
}

// Complete marks an assignment completed
func (h *PracticeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	identity, _ := GetIdentityFromContext(r.Context())

	assignment, err := h.practice.MarkComplete(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, assignment)
}

// childIDParam reads ?childId=, defaulting to the caller when the caller is a child
func childIDParam(r *http.Request, identity models.Identity) string {
	childID := r.URL.Query().Get("childId")
	if childID == "" && identity.IsChild() {
		return identity.UserID
	}
	return childID
}
