// Package metrics exposes the Prometheus counters of the progress ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	XPCreditedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkquest_xp_credited_total",
			Help: "Total XP credited to users by source.",
		},
		[]string{"source"},
	)

	StreakTouchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkquest_streak_touches_total",
			Help: "Total streak touches by outcome (created, same_day, extended, restarted).",
		},
		[]string{"outcome"},
	)

	StreaksLapsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkquest_streaks_lapsed_total",
		Help: "Total streaks reset to zero by the nightly lapse job.",
	})

	AchievementsGrantedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkquest_achievements_granted_total",
		Help: "Total achievements newly granted.",
	})

	GamesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkquest_games_completed_total",
		Help: "Total game completions recorded.",
	})

	PracticeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkquest_practice_attempts_total",
			Help: "Total practice attempts recorded by assignment type.",
		},
		[]string{"type"},
	)

	GoalsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talkquest_goals_completed_total",
		Help: "Total goals completed.",
	})

	ConcurrentConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkquest_concurrent_conflicts_total",
			Help: "Compare-and-swap retries by operation.",
		},
		[]string{"op"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talkquest_http_requests_total",
			Help: "Total HTTP requests by route pattern and status code.",
		},
		[]string{"route", "status"},
	)
)
