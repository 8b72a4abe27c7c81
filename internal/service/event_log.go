package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"talkquest/internal/database"
	"talkquest/internal/models"
	"talkquest/internal/repository"
)

// EventLog appends activity records. Appends share the caller's
// transaction so the event commits with the state change it describes.
type EventLog struct {
	repo  *repository.EventRepository
	clock Clock
}

// NewEventLog creates a new event log
func NewEventLog(db *database.DB, clock Clock) *EventLog {
	return &EventLog{
		repo:  repository.NewEventRepository(db),
		clock: clock,
	}
}

// appendTx writes an event inside tx. It returns false if dedupeKey was already used.
func (l *EventLog) appendTx(ctx context.Context, tx *database.Tx, userID string, kind models.EventKind, dedupeKey string, payload interface{}) (bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	event := &models.ActivityEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		DedupeKey: dedupeKey,
		Payload:   data,
		CreatedAt: l.clock.Now().UTC(),
	}
	return l.repo.WithTx(tx).Append(ctx, event)
}

// Recent returns up to limit of a user's latest events
func (l *EventLog) Recent(ctx context.Context, userID string, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	events, err := l.repo.ListByUser(ctx, userID, limit)
	return events, wrap("EventLog.Recent", err)
}
