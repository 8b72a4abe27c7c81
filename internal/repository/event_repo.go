package repository

import (
	"context"
	"database/sql"
	"fmt"

	"talkquest/internal/database"
	"talkquest/internal/models"
)

// EventRepository stores the append-only activity log
type EventRepository struct {
	db database.DBTX
}

// NewEventRepository creates a new event repository
func NewEventRepository(db database.DBTX) *EventRepository {
	return &EventRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *EventRepository) WithTx(tx *database.Tx) *EventRepository {
	return &EventRepository{db: tx}
}

// Append writes an event. When DedupeKey is set and an event with the same
// user, kind and key exists, nothing is written and false is returned.
func (r *EventRepository) Append(ctx context.Context, e *models.ActivityEvent) (bool, error) {
	query := `
		INSERT INTO activity_events (id, user_id, kind, dedupe_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if e.DedupeKey != "" {
		query = r.db.GetDialect().InsertIgnore(query)
	}

	result, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, string(e.Kind),
		nullableString(e.DedupeKey), string(e.Payload), e.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}
	return rowsChanged(result)
}

// ListByUser returns up to limit of a user's most recent events
func (r *EventRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ActivityEvent, error) {
	return r.list(ctx, `
		SELECT id, user_id, kind, dedupe_key, payload, created_at
		FROM activity_events
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
}

// ListAll returns every event in creation order
func (r *EventRepository) ListAll(ctx context.Context) ([]models.ActivityEvent, error) {
	return r.list(ctx, `
		SELECT id, user_id, kind, dedupe_key, payload, created_at
		FROM activity_events
		ORDER BY created_at, id
	`)
}

func (r *EventRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.ActivityEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.ActivityEvent{}
	for rows.Next() {
		var e models.ActivityEvent
		var kind, payload string
		var dedupe sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &kind, &dedupe, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = models.EventKind(kind)
		e.DedupeKey = dedupe.String
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Restore inserts an event from a backup, skipping existing ids
func (r *EventRepository) Restore(ctx context.Context, e *models.ActivityEvent) error {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO activity_events (id, user_id, kind, dedupe_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query, e.ID, e.UserID, string(e.Kind),
		nullableString(e.DedupeKey), string(e.Payload), e.CreatedAt.UTC())
	return err
}
