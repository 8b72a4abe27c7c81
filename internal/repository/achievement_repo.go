package repository

import (
	"context"
	"fmt"

	"talkquest/internal/database"
	"talkquest/internal/models"
)

// AchievementRepository handles unlocked achievements
type AchievementRepository struct {
	db database.DBTX
}

// NewAchievementRepository creates a new achievement repository
func NewAchievementRepository(db database.DBTX) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *AchievementRepository) WithTx(tx *database.Tx) *AchievementRepository {
	return &AchievementRepository{db: tx}
}

const achievementColumns = `id, user_id, achievement_type, description, xp_reward, created_at`

// CreateIfAbsent inserts the achievement unless the user already holds one of
// the same type. It reports whether a row was written.
func (r *AchievementRepository) CreateIfAbsent(ctx context.Context, a *models.Achievement) (bool, error) {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO achievements (` + achievementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	result, err := r.db.ExecContext(ctx, query, a.ID, a.UserID, a.AchievementType, a.Description, a.XPReward, a.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("create achievement: %w", err)
	}
	return rowsChanged(result)
}

// GetByType retrieves the achievement of the given type for a user
func (r *AchievementRepository) GetByType(ctx context.Context, userID, achievementType string) (*models.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE user_id = ? AND achievement_type = ?`
	var a models.Achievement
	err := r.db.QueryRowContext(ctx, query, userID, achievementType).Scan(
		&a.ID, &a.UserID, &a.AchievementType, &a.Description, &a.XPReward, &a.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListByUser returns a user's achievements, newest first
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]models.Achievement, error) {
	return r.list(ctx, `
		SELECT `+achievementColumns+` FROM achievements
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
}

// ListAll returns every achievement in creation order
func (r *AchievementRepository) ListAll(ctx context.Context) ([]models.Achievement, error) {
	return r.list(ctx, `SELECT `+achievementColumns+` FROM achievements ORDER BY created_at, id`)
}

func (r *AchievementRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Achievement, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	achievements := []models.Achievement{}
	for rows.Next() {
		var a models.Achievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.AchievementType, &a.Description, &a.XPReward, &a.CreatedAt); err != nil {
			return nil, err
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}
