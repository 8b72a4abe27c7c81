package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"talkquest/internal/database"
	"talkquest/internal/models"
	"talkquest/internal/repository"
)

// BackupVersion is written into every export
const BackupVersion = "1.0"

// BackupData represents the complete ledger backup structure
type BackupData struct {
	Version      string                      `json:"version"`
	ExportedAt   time.Time                   `json:"exported_at"`
	Users        []models.User               `json:"users"`
	Links        []models.ParentChildLink    `json:"parent_child_links"`
	GameStats    []models.UserGameStats      `json:"user_game_stats"`
	GoalStats    []models.UserGoalStats      `json:"user_goal_stats"`
	Assignments  []models.PracticeAssignment `json:"practice_assignments"`
	Attempts     []models.PracticeAttempt    `json:"practice_attempts"`
	Goals        []models.AssignedGoal       `json:"assigned_goals"`
	Achievements []models.Achievement        `json:"achievements"`
	Events       []models.ActivityEvent      `json:"activity_events"`
}

// BackupService handles ledger export and restore
type BackupService struct {
	db           *database.DB
	users        *repository.UserRepository
	stats        *repository.StatsRepository
	practice     *repository.PracticeRepository
	goals        *repository.GoalRepository
	achievements *repository.AchievementRepository
	events       *repository.EventRepository
	logger       *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, logger *zap.Logger) *BackupService {
	return &BackupService{
		db:           db,
		users:        repository.NewUserRepository(db),
		stats:        repository.NewStatsRepository(db),
		practice:     repository.NewPracticeRepository(db),
		goals:        repository.NewGoalRepository(db),
		achievements: repository.NewAchievementRepository(db),
		events:       repository.NewEventRepository(db),
		logger:       logger,
	}
}

// Export writes a complete backup of the ledger as JSON
func (s *BackupService) Export(ctx context.Context, w io.Writer) (*BackupData, error) {
	s.logger.Info("Starting ledger export")

	backup := &BackupData{Version: BackupVersion, ExportedAt: time.Now().UTC()}

	var err error
	if backup.Users, err = s.users.List(ctx); err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	if backup.Links, err = s.users.ListLinks(ctx); err != nil {
		return nil, fmt.Errorf("failed to export parent links: %w", err)
	}
	if backup.GameStats, err = s.stats.ListGameStats(ctx); err != nil {
		return nil, fmt.Errorf("failed to export game stats: %w", err)
	}
	if backup.GoalStats, err = s.stats.ListGoalStats(ctx); err != nil {
		return nil, fmt.Errorf("failed to export goal stats: %w", err)
	}
	if backup.Assignments, err = s.practice.ListAllAssignments(ctx); err != nil {
		return nil, fmt.Errorf("failed to export assignments: %w", err)
	}
	if backup.Attempts, err = s.practice.ListAllAttempts(ctx); err != nil {
		return nil, fmt.Errorf("failed to export attempts: %w", err)
	}
	if backup.Goals, err = s.goals.ListAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to export goals: %w", err)
	}
	if backup.Achievements, err = s.achievements.ListAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to export achievements: %w", err)
	}
	if backup.Events, err = s.events.ListAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to export events: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	s.logger.Info("Ledger exported",
		zap.Int("users", len(backup.Users)),
		zap.Int("assignments", len(backup.Assignments)),
		zap.Int("goals", len(backup.Goals)),
		zap.Int("achievements", len(backup.Achievements)),
		zap.Int("events", len(backup.Events)))
	return backup, nil
}

// Import restores a backup in one transaction. Rows whose key already exists
// are left untouched, so importing into a populated database merges.
// Row versions restart at zero.
func (s *BackupService) Import(ctx context.Context, r io.Reader) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	s.logger.Info("Starting ledger import", zap.Time("exportedAt", backup.ExportedAt))

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		users := s.users.WithTx(tx)
		for i := range backup.Users {
			if err := users.Upsert(ctx, &backup.Users[i]); err != nil {
				return fmt.Errorf("failed to import users: %w", err)
			}
		}
		for _, link := range backup.Links {
			if err := users.LinkChild(ctx, link.ParentID, link.ChildID, link.CreatedAt); err != nil {
				return fmt.Errorf("failed to import parent links: %w", err)
			}
		}

		stats := s.stats.WithTx(tx)
		for i := range backup.GameStats {
			if err := stats.RestoreGameStats(ctx, &backup.GameStats[i]); err != nil {
				return fmt.Errorf("failed to import game stats: %w", err)
			}
		}
		for i := range backup.GoalStats {
			if _, err := stats.CreateGoalStats(ctx, &backup.GoalStats[i]); err != nil {
				return fmt.Errorf("failed to import goal stats: %w", err)
			}
		}

		practice := s.practice.WithTx(tx)
		for i := range backup.Assignments {
			if err := practice.RestoreAssignment(ctx, &backup.Assignments[i]); err != nil {
				return fmt.Errorf("failed to import assignments: %w", err)
			}
		}
		for i := range backup.Attempts {
			if err := practice.RestoreAttempt(ctx, &backup.Attempts[i]); err != nil {
				return fmt.Errorf("failed to import attempts: %w", err)
			}
		}

		goals := s.goals.WithTx(tx)
		for i := range backup.Goals {
			if err := goals.Restore(ctx, &backup.Goals[i]); err != nil {
				return fmt.Errorf("failed to import goals: %w", err)
			}
		}

		achievements := s.achievements.WithTx(tx)
		for i := range backup.Achievements {
			if _, err := achievements.CreateIfAbsent(ctx, &backup.Achievements[i]); err != nil {
				return fmt.Errorf("failed to import achievements: %w", err)
			}
		}

		events := s.events.WithTx(tx)
		for i := range backup.Events {
			if err := events.Restore(ctx, &backup.Events[i]); err != nil {
				return fmt.Errorf("failed to import events: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Ledger import completed")
	return nil
}

// Clear deletes all ledger data, children before parents
func (s *BackupService) Clear(ctx context.Context) error {
	tables := []string{
		"activity_events",
		"achievements",
		"practice_attempts",
		"practice_assignments",
		"assigned_goals",
		"user_goal_stats",
		"user_game_stats",
		"parent_child_links",
		"users",
	}

	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
			s.logger.Info("Cleared table", zap.String("table", table))
		}
		return nil
	})
}
