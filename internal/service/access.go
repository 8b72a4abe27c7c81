package service

import (
	"context"
	"errors"

	"talkquest/internal/models"
	"talkquest/internal/repository"
)

// access answers role and relationship questions about callers
type access struct {
	users *repository.UserRepository
}

// requireChild loads childID and checks that it is a child account
func (a access) requireChild(ctx context.Context, op, childID string) (*models.User, error) {
	if childID == "" {
		return nil, invalidArgument(op, "childId is required")
	}
	child, err := a.users.GetByID(ctx, childID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(op, "child")
	}
	if err != nil {
		return nil, wrap(op, err)
	}
	if child.Role != models.RoleChild {
		return nil, invalidArgument(op, "user %s is not a child", childID)
	}
	return child, nil
}

// isLinkedParent reports whether caller is a parent linked to childID
func (a access) isLinkedParent(ctx context.Context, caller models.Identity, childID string) (bool, error) {
	if !caller.IsParent() {
		return false, nil
	}
	return a.users.IsLinked(ctx, caller.UserID, childID)
}

// authorizeChildView allows the child, any therapist and linked parents
func (a access) authorizeChildView(ctx context.Context, op string, caller models.Identity, childID string) error {
	switch {
	case caller.IsChild() && caller.UserID == childID:
		return nil
	case caller.IsTherapist():
		return nil
	}
	linked, err := a.isLinkedParent(ctx, caller, childID)
	if err != nil {
		return wrap(op, err)
	}
	if !linked {
		return forbidden(op, "caller may not view this child")
	}
	return nil
}
