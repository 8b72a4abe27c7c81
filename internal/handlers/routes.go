package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"talkquest/internal/models"
)

// Routes bundles the handlers mounted by NewRouter
type Routes struct {
	Middleware *Middleware
	Health     *HealthHandler
	Progress   *ProgressHandler
	Practice   *PracticeHandler
	Goals      *GoalHandler
	Internal   *InternalHandler
	Metrics    http.Handler
	Logger     *zap.Logger
}

// NewRouter registers every route and wraps the mux with request logging
func NewRouter(rt Routes) http.Handler {
	mux := http.NewServeMux()
	m := rt.Middleware
	auth := m.RequireIdentity
	childOnly := func(h http.HandlerFunc) http.HandlerFunc {
		return auth(m.RequireRole(models.RoleChild)(h))
	}

	// Probes and metrics
	mux.HandleFunc("GET /healthz", rt.Health.Live)
	mux.HandleFunc("GET /readyz", rt.Health.Ready)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	// Caller's own progress
	mux.HandleFunc("GET /api/me/stats", auth(rt.Progress.GetStats))
	mux.HandleFunc("POST /api/me/streak/touch", childOnly(rt.Progress.TouchStreak))
	mux.HandleFunc("POST /api/me/streak/reset", auth(rt.Progress.ResetStreak))
	mux.HandleFunc("POST /api/me/games", childOnly(rt.Progress.RecordGame))
	mux.HandleFunc("GET /api/me/achievements", auth(rt.Progress.ListAchievements))
	mux.HandleFunc("GET /api/me/events", auth(rt.Progress.ListEvents))

	// Practice assignments
	mux.HandleFunc("POST /api/practice/assignments", auth(rt.Practice.Assign))
	mux.HandleFunc("GET /api/practice/assignments", auth(rt.Practice.ListForChild))
	mux.HandleFunc("GET /api/practice/assigned", auth(rt.Practice.ListAssignedBy))
	mux.HandleFunc("POST /api/practice/assignments/{id}/attempts", auth(rt.Practice.RecordAttempt))
	mux.HandleFunc("GET /api/practice/assignments/{id}/attempts", auth(rt.Practice.ListAttempts))
	mux.HandleFunc("POST /api/practice/assignments/{id}/complete", auth(rt.Practice.Complete))

	// Goals
	mux.HandleFunc("POST /api/goals", auth(rt.Goals.Assign))
	mux.HandleFunc("GET /api/goals", auth(rt.Goals.ListForChild))
	mux.HandleFunc("GET /api/goals/assigned", auth(rt.Goals.ListAssignedBy))
	mux.HandleFunc("PATCH /api/goals/{id}/progress", auth(rt.Goals.UpdateProgress))
	mux.HandleFunc("PATCH /api/goals/{id}", auth(rt.Goals.UpdateDetails))
	mux.HandleFunc("DELETE /api/goals/{id}", auth(rt.Goals.Delete))

	// Service-to-service
	mux.HandleFunc("POST /internal/users/{userId}/achievements", m.RequireInternalToken(rt.Internal.GrantAchievement))

	return Logging(rt.Logger)(mux)
}
