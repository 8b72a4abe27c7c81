package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"talkquest/internal/database"
	"talkquest/internal/models"
)

// GoalRepository handles assigned goal database operations
type GoalRepository struct {
	db database.DBTX
}

// NewGoalRepository creates a new goal repository
func NewGoalRepository(db database.DBTX) *GoalRepository {
	return &GoalRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *GoalRepository) WithTx(tx *database.Tx) *GoalRepository {
	return &GoalRepository{db: tx}
}

const goalColumns = `id, child_id, assigned_by, assigned_by_role, title, target_value, xp_reward,
	status, progress, version, created_at, updated_at, completed_at`

// Create inserts a new goal
func (r *GoalRepository) Create(ctx context.Context, g *models.AssignedGoal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assigned_goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, goalArgs(g)...)
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

func goalArgs(g *models.AssignedGoal) []interface{} {
	var completedAt interface{}
	if g.CompletedAt != nil {
		completedAt = g.CompletedAt.UTC()
	}
	return []interface{}{
		g.ID, g.ChildID, g.AssignedBy, string(g.AssignedByRole), g.Title, g.TargetValue, g.XPReward,
		string(g.Status), g.Progress, g.Version, g.CreatedAt.UTC(), g.UpdatedAt.UTC(), completedAt,
	}
}

// GetByID retrieves a goal by id
func (r *GoalRepository) GetByID(ctx context.Context, id string) (*models.AssignedGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM assigned_goals WHERE id = ?`
	g, err := scanGoal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

func scanGoal(row rowScanner) (*models.AssignedGoal, error) {
	g := &models.AssignedGoal{}
	var role, status string
	var completedAt sql.NullTime
	err := row.Scan(&g.ID, &g.ChildID, &g.AssignedBy, &role, &g.Title, &g.TargetValue, &g.XPReward,
		&status, &g.Progress, &g.Version, &g.CreatedAt, &g.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	g.AssignedByRole = models.Role(role)
	g.Status = models.GoalStatus(status)
	if completedAt.Valid {
		g.CompletedAt = &completedAt.Time
	}
	return g, nil
}

// UpdateProgress stores progress on an active goal. It reports false if the
// goal is no longer active.
func (r *GoalRepository) UpdateProgress(ctx context.Context, id string, progress int, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE assigned_goals
		SET progress = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?
	`, progress, now.UTC(), id, string(models.GoalActive))
	if err != nil {
		return false, fmt.Errorf("update goal progress: %w", err)
	}
	return rowsChanged(result)
}

// Complete moves an active goal to completed. Only one caller can win this
// transition; the others get false.
func (r *GoalRepository) Complete(ctx context.Context, id string, progress int, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE assigned_goals
		SET status = ?, progress = ?, completed_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(models.GoalCompleted), progress, now.UTC(), now.UTC(), id, string(models.GoalActive))
	if err != nil {
		return false, fmt.Errorf("complete goal: %w", err)
	}
	return rowsChanged(result)
}

// UpdateDetails rewrites title, target and reward of an active goal
func (r *GoalRepository) UpdateDetails(ctx context.Context, g *models.AssignedGoal, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE assigned_goals
		SET title = ?, target_value = ?, xp_reward = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?
	`, g.Title, g.TargetValue, g.XPReward, now.UTC(), g.ID, string(models.GoalActive))
	if err != nil {
		return false, fmt.Errorf("update goal: %w", err)
	}
	return rowsChanged(result)
}

// Delete removes a goal
func (r *GoalRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM assigned_goals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	ok, err := rowsChanged(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ListByChild returns a child's goals, newest first
func (r *GoalRepository) ListByChild(ctx context.Context, childID string) ([]models.AssignedGoal, error) {
	return r.list(ctx, `
		SELECT `+goalColumns+` FROM assigned_goals
		WHERE child_id = ?
		ORDER BY created_at DESC, id DESC
	`, childID)
}

// ListByAssigner returns the goals an adult created, newest first
func (r *GoalRepository) ListByAssigner(ctx context.Context, assignerID string) ([]models.AssignedGoal, error) {
	return r.list(ctx, `
		SELECT `+goalColumns+` FROM assigned_goals
		WHERE assigned_by = ?
		ORDER BY created_at DESC, id DESC
	`, assignerID)
}

// ListAll returns every goal in creation order
func (r *GoalRepository) ListAll(ctx context.Context) ([]models.AssignedGoal, error) {
	return r.list(ctx, `
		SELECT `+goalColumns+` FROM assigned_goals
		ORDER BY created_at, id
	`)
}

func (r *GoalRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.AssignedGoal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	goals := []models.AssignedGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

// Restore inserts a goal from a backup, skipping existing ids
func (r *GoalRepository) Restore(ctx context.Context, g *models.AssignedGoal) error {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO assigned_goals (` + goalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query, goalArgs(g)...)
	return err
}

func rowsChanged(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
