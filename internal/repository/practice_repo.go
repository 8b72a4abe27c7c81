package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"talkquest/internal/database"
	"talkquest/internal/models"
)

// PracticeRepository handles practice assignment and attempt database operations
type PracticeRepository struct {
	db database.DBTX
}

// NewPracticeRepository creates a new practice repository
func NewPracticeRepository(db database.DBTX) *PracticeRepository {
	return &PracticeRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *PracticeRepository) WithTx(tx *database.Tx) *PracticeRepository {
	return &PracticeRepository{db: tx}
}

const assignmentColumns = `id, child_id, assigned_by, type, text, status, latest_score, created_at, updated_at`

// CreateAssignment inserts a new assignment
func (r *PracticeRepository) CreateAssignment(ctx context.Context, a *models.PracticeAssignment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO practice_assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ChildID, a.AssignedBy, string(a.Type), a.Text, string(a.Status),
		nullableFloat(a.LatestScore), a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// GetAssignment retrieves an assignment by id
func (r *PracticeRepository) GetAssignment(ctx context.Context, id string) (*models.PracticeAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM practice_assignments WHERE id = ?`
	a, err := scanAssignment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func scanAssignment(row rowScanner) (*models.PracticeAssignment, error) {
	a := &models.PracticeAssignment{}
	var typ, status string
	var score sql.NullFloat64
	err := row.Scan(&a.ID, &a.ChildID, &a.AssignedBy, &typ, &a.Text, &status, &score, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Type = models.PracticeType(typ)
	a.Status = models.PracticeStatus(status)
	a.LatestScore = floatPtr(score)
	return a, nil
}

// UpdateAssignmentState stores a new status and latest score
func (r *PracticeRepository) UpdateAssignmentState(ctx context.Context, id string, status models.PracticeStatus, latestScore *float64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE practice_assignments
		SET status = ?, latest_score = ?, updated_at = ?
		WHERE id = ?
	`, string(status), nullableFloat(latestScore), now.UTC(), id)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// MarkCompleted moves an assignment to completed. It reports false if it already was.
func (r *PracticeRepository) MarkCompleted(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE practice_assignments
		SET status = ?, updated_at = ?
		WHERE id = ? AND status <> ?
	`, string(models.PracticeCompleted), now.UTC(), id, string(models.PracticeCompleted))
	if err != nil {
		return false, fmt.Errorf("complete assignment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListAssignmentsByChild returns a child's assignments, newest first
func (r *PracticeRepository) ListAssignmentsByChild(ctx context.Context, childID string) ([]models.PracticeAssignment, error) {
	return r.listAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM practice_assignments
		WHERE child_id = ?
		ORDER BY created_at DESC, id DESC
	`, childID)
}

// ListAssignmentsByAssigner returns assignments created by a therapist, newest first
func (r *PracticeRepository) ListAssignmentsByAssigner(ctx context.Context, assignerID string) ([]models.PracticeAssignment, error) {
	return r.listAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM practice_assignments
		WHERE assigned_by = ?
		ORDER BY created_at DESC, id DESC
	`, assignerID)
}

// ListAllAssignments returns every assignment in creation order
func (r *PracticeRepository) ListAllAssignments(ctx context.Context) ([]models.PracticeAssignment, error) {
	return r.listAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM practice_assignments
		ORDER BY created_at, id
	`)
}

func (r *PracticeRepository) listAssignments(ctx context.Context, query string, args ...interface{}) ([]models.PracticeAssignment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []models.PracticeAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

const attemptColumns = `id, assignment_id, child_id, submitted_by, score, predicted_text, created_at`

// CreateAttempt appends an attempt
func (r *PracticeRepository) CreateAttempt(ctx context.Context, a *models.PracticeAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO practice_attempts (`+attemptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.AssignmentID, a.ChildID, a.SubmittedBy, nullableFloat(a.Score), a.PredictedText, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the attempts for an assignment, newest first
func (r *PracticeRepository) ListAttempts(ctx context.Context, assignmentID string) ([]models.PracticeAttempt, error) {
	return r.listAttempts(ctx, `
		SELECT `+attemptColumns+` FROM practice_attempts
		WHERE assignment_id = ?
		ORDER BY created_at DESC, id DESC
	`, assignmentID)
}

// ListAllAttempts returns every attempt in creation order
func (r *PracticeRepository) ListAllAttempts(ctx context.Context) ([]models.PracticeAttempt, error) {
	return r.listAttempts(ctx, `
		SELECT `+attemptColumns+` FROM practice_attempts
		ORDER BY created_at, id
	`)
}

func (r *PracticeRepository) listAttempts(ctx context.Context, query string, args ...interface{}) ([]models.PracticeAttempt, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []models.PracticeAttempt{}
	for rows.Next() {
		var a models.PracticeAttempt
		var score sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.AssignmentID, &a.ChildID, &a.SubmittedBy, &score, &a.PredictedText, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Score = floatPtr(score)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// RestoreAssignment inserts an assignment from a backup, skipping existing ids
func (r *PracticeRepository) RestoreAssignment(ctx context.Context, a *models.PracticeAssignment) error {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO practice_assignments (` + assignmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query, a.ID, a.ChildID, a.AssignedBy, string(a.Type), a.Text,
		string(a.Status), nullableFloat(a.LatestScore), a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	return err
}

// RestoreAttempt inserts an attempt from a backup, skipping existing ids
func (r *PracticeRepository) RestoreAttempt(ctx context.Context, a *models.PracticeAttempt) error {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO practice_attempts (` + attemptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query, a.ID, a.AssignmentID, a.ChildID, a.SubmittedBy,
		nullableFloat(a.Score), a.PredictedText, a.CreatedAt.UTC())
	return err
}
