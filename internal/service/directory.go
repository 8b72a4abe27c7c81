package service

import (
	"context"

	"talkquest/internal/database"
	"talkquest/internal/models"
	"talkquest/internal/repository"
)

// UserDirectory mirrors identities from verified tokens into the local store
type UserDirectory struct {
	db    *database.DB
	users *repository.UserRepository
	clock Clock
}

// NewUserDirectory creates a new user directory
func NewUserDirectory(db *database.DB, clock Clock) *UserDirectory {
	return &UserDirectory{
		db:    db,
		users: repository.NewUserRepository(db),
		clock: clock,
	}
}

// Sync upserts the caller and their child links in one transaction
func (d *UserDirectory) Sync(ctx context.Context, identity models.Identity) error {
	const op = "UserDirectory.Sync"
	if identity.UserID == "" {
		return invalidArgument(op, "user id is required")
	}
	if _, err := models.ParseRole(string(identity.Role)); err != nil {
		return invalidArgument(op, "%v", err)
	}

	now := d.clock.Now().UTC()
	err := d.db.WithTx(ctx, func(tx *database.Tx) error {
		return d.users.WithTx(tx).SyncIdentity(ctx, identity, now)
	})
	return wrap(op, err)
}

// Get returns a mirrored user
func (d *UserDirectory) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrap("UserDirectory.Get", err)
	}
	return user, nil
}
