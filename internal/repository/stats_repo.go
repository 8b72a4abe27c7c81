package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"talkquest/internal/database"
	"talkquest/internal/models"
)

// StatsRepository handles the per-user game and goal counter rows
type StatsRepository struct {
	db database.DBTX
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db database.DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *StatsRepository) WithTx(tx *database.Tx) *StatsRepository {
	return &StatsRepository{db: tx}
}

// ensureGameStats creates the zero row for userID if it does not exist yet
func (r *StatsRepository) ensureGameStats(ctx context.Context, userID string, now time.Time) error {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO user_game_stats (user_id, achievements, games_played, total_xp, version, updated_at)
		VALUES (?, 0, 0, 0, 0, ?)
	`)
	if _, err := r.db.ExecContext(ctx, query, userID, now.UTC()); err != nil {
		return fmt.Errorf("ensure game stats: %w", err)
	}
	return nil
}

// GetGameStats retrieves the game counters for a user
func (r *StatsRepository) GetGameStats(ctx context.Context, userID string) (*models.UserGameStats, error) {
	query := `
		SELECT user_id, achievements, games_played, total_xp, version, updated_at
		FROM user_game_stats
		WHERE user_id = ?
	`
	stats, err := scanGameStats(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return stats, nil
}

func scanGameStats(row rowScanner) (*models.UserGameStats, error) {
	stats := &models.UserGameStats{}
	err := row.Scan(&stats.UserID, &stats.Achievements, &stats.GamesPlayed, &stats.TotalXP, &stats.Version, &stats.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// AddXP atomically increments total XP and returns the new total
func (r *StatsRepository) AddXP(ctx context.Context, userID string, amount int, now time.Time) (int, error) {
	if err := r.ensureGameStats(ctx, userID, now); err != nil {
		return 0, err
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE user_game_stats
		SET total_xp = total_xp + ?, version = version + 1, updated_at = ?
		WHERE user_id = ?
	`, amount, now.UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("add xp: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT total_xp FROM user_game_stats WHERE user_id = ?", userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("read xp total: %w", err)
	}
	return total, nil
}

// AddGameCounters increments games played and achievements by the given deltas
func (r *StatsRepository) AddGameCounters(ctx context.Context, userID string, games, achievements int, now time.Time) error {
	if err := r.ensureGameStats(ctx, userID, now); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE user_game_stats
		SET games_played = games_played + ?, achievements = achievements + ?,
		    version = version + 1, updated_at = ?
		WHERE user_id = ?
	`, games, achievements, now.UTC(), userID)
	if err != nil {
		return fmt.Errorf("add game counters: %w", err)
	}
	return nil
}

// ListGameStats returns every game stats row
func (r *StatsRepository) ListGameStats(ctx context.Context) ([]models.UserGameStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, achievements, games_played, total_xp, version, updated_at
		FROM user_game_stats
		ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []models.UserGameStats
	for rows.Next() {
		stats, err := scanGameStats(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, *stats)
	}
	return all, rows.Err()
}

// RestoreGameStats writes a full game stats row, skipping users that already have one
func (r *StatsRepository) RestoreGameStats(ctx context.Context, stats *models.UserGameStats) error {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO user_game_stats (user_id, achievements, games_played, total_xp, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query, stats.UserID, stats.Achievements, stats.GamesPlayed,
		stats.TotalXP, stats.Version, stats.UpdatedAt.UTC())
	return err
}

// GetGoalStats retrieves streak and goal counters for a user
func (r *StatsRepository) GetGoalStats(ctx context.Context, userID string) (*models.UserGoalStats, error) {
	query := `
		SELECT user_id, current_streak, best_streak, goals_completed, total_xp_earned,
		       last_practice_date, version, updated_at
		FROM user_goal_stats
		WHERE user_id = ?
	`
	stats, err := scanGoalStats(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return stats, nil
}

func scanGoalStats(row rowScanner) (*models.UserGoalStats, error) {
	stats := &models.UserGoalStats{}
	var lastPractice sql.NullString
	err := row.Scan(&stats.UserID, &stats.CurrentStreak, &stats.BestStreak, &stats.GoalsCompleted,
		&stats.TotalXPEarned, &lastPractice, &stats.Version, &stats.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if stats.LastPracticeDate, err = scanDate(lastPractice); err != nil {
		return nil, err
	}
	return stats, nil
}

// CreateGoalStats inserts a goal stats row. It reports false if the user already had one.
func (r *StatsRepository) CreateGoalStats(ctx context.Context, stats *models.UserGoalStats) (bool, error) {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO user_goal_stats
			(user_id, current_streak, best_streak, goals_completed, total_xp_earned,
			 last_practice_date, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	result, err := r.db.ExecContext(ctx, query, stats.UserID, stats.CurrentStreak, stats.BestStreak,
		stats.GoalsCompleted, stats.TotalXPEarned, nullableDate(stats.LastPracticeDate),
		stats.Version, stats.UpdatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("create goal stats: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateStreak writes new streak values if the row is still at expectedVersion.
// It reports false when another writer got there first.
func (r *StatsRepository) UpdateStreak(ctx context.Context, userID string, expectedVersion int, state models.StreakState, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE user_goal_stats
		SET current_streak = ?, best_streak = ?, last_practice_date = ?,
		    version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?
	`, state.CurrentStreak, state.BestStreak, nullableDate(state.LastPracticeDate), now.UTC(),
		userID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("update streak: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AddGoalCompletion counts one completed goal and its XP reward
func (r *StatsRepository) AddGoalCompletion(ctx context.Context, userID string, xpReward int, now time.Time) error {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO user_goal_stats
			(user_id, current_streak, best_streak, goals_completed, total_xp_earned, version, updated_at)
		VALUES (?, 0, 0, 0, 0, 0, ?)
	`)
	if _, err := r.db.ExecContext(ctx, query, userID, now.UTC()); err != nil {
		return fmt.Errorf("ensure goal stats: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE user_goal_stats
		SET goals_completed = goals_completed + 1, total_xp_earned = total_xp_earned + ?,
		    version = version + 1, updated_at = ?
		WHERE user_id = ?
	`, xpReward, now.UTC(), userID)
	if err != nil {
		return fmt.Errorf("add goal completion: %w", err)
	}
	return nil
}

// ListLapsing returns the users whose streak LapseStreaks would reset for cutoff
func (r *StatsRepository) ListLapsing(ctx context.Context, cutoff models.Date) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM user_goal_stats
		WHERE current_streak > 0
		  AND last_practice_date IS NOT NULL
		  AND last_practice_date < ?
		ORDER BY user_id
	`, cutoff.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LapseStreaks zeroes the current streak of every user whose last practice
// day is before cutoff. It returns the number of streaks reset.
func (r *StatsRepository) LapseStreaks(ctx context.Context, cutoff models.Date, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE user_goal_stats
		SET current_streak = 0, version = version + 1, updated_at = ?
		WHERE current_streak > 0
		  AND last_practice_date IS NOT NULL
		  AND last_practice_date < ?
	`, now.UTC(), cutoff.String())
	if err != nil {
		return 0, fmt.Errorf("lapse streaks: %w", err)
	}
	return result.RowsAffected()
}

// ListGoalStats returns every goal stats row
func (r *StatsRepository) ListGoalStats(ctx context.Context) ([]models.UserGoalStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, current_streak, best_streak, goals_completed, total_xp_earned,
		       last_practice_date, version, updated_at
		FROM user_goal_stats
		ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []models.UserGoalStats
	for rows.Next() {
		stats, err := scanGoalStats(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, *stats)
	}
	return all, rows.Err()
}

// StatsVersions holds the row versions of a user's stats. Missing rows are -1.
type StatsVersions struct {
	Game int
	Goal int
}

// GetVersions reads both stats row versions in one statement
func (r *StatsRepository) GetVersions(ctx context.Context, userID string) (StatsVersions, error) {
	var v StatsVersions
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT version FROM user_game_stats WHERE user_id = ?), -1),
			COALESCE((SELECT version FROM user_goal_stats WHERE user_id = ?), -1)
	`, userID, userID).Scan(&v.Game, &v.Goal)
	if err != nil {
		return StatsVersions{}, fmt.Errorf("read stats versions: %w", err)
	}
	return v, nil
}
