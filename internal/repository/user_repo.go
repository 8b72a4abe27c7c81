package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"talkquest/internal/database"
	"talkquest/internal/models"
)

// UserRepository mirrors identity-provider accounts and parent links
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *UserRepository) WithTx(tx *database.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

// Upsert creates the user or refreshes its role, name and e-mail
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	now := user.UpdatedAt.UTC()
	insert := r.db.GetDialect().InsertIgnore(`
		INSERT INTO users (id, role, display_name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if _, err := r.db.ExecContext(ctx, insert, user.ID, string(user.Role), user.DisplayName, user.Email, now, now); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = ?, display_name = ?, email = ?, updated_at = ?
		WHERE id = ? AND (role <> ? OR display_name <> ? OR email <> ?)
	`, string(user.Role), user.DisplayName, user.Email, now,
		user.ID, string(user.Role), user.DisplayName, user.Email)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, role, display_name, email, created_at, updated_at
		FROM users
		WHERE id = ?
	`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// List returns every user ordered by id
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, role, display_name, email, created_at, updated_at
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role string
	if err := row.Scan(&user.ID, &role, &user.DisplayName, &user.Email, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return user, nil
}

// LinkChild records that parentID may act for childID. Existing links are kept.
func (r *UserRepository) LinkChild(ctx context.Context, parentID, childID string, now time.Time) error {
	query := r.db.GetDialect().InsertIgnore(`
		INSERT INTO parent_child_links (parent_id, child_id, created_at)
		VALUES (?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query, parentID, childID, now.UTC())
	return err
}

// UnlinkExcept removes parentID's links to every child not in keep
func (r *UserRepository) UnlinkExcept(ctx context.Context, parentID string, keep []string) error {
	if len(keep) == 0 {
		_, err := r.db.ExecContext(ctx, `DELETE FROM parent_child_links WHERE parent_id = ?`, parentID)
		return err
	}

	args := make([]interface{}, 0, len(keep)+1)
	args = append(args, parentID)
	for _, childID := range keep {
		args = append(args, childID)
	}
	query := `DELETE FROM parent_child_links WHERE parent_id = ? AND child_id NOT IN (` +
		strings.TrimSuffix(strings.Repeat("?, ", len(keep)), ", ") + `)`
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// IsLinked reports whether parentID is linked to childID
func (r *UserRepository) IsLinked(ctx context.Context, parentID, childID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM parent_child_links WHERE parent_id = ? AND child_id = ?
	`, parentID, childID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListLinks returns every parent-child link
func (r *UserRepository) ListLinks(ctx context.Context) ([]models.ParentChildLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT parent_id, child_id, created_at
		FROM parent_child_links
		ORDER BY parent_id, child_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.ParentChildLink
	for rows.Next() {
		var link models.ParentChildLink
		if err := rows.Scan(&link.ParentID, &link.ChildID, &link.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// SyncIdentity upserts the caller and, for parents, replaces their child
// links with identity.Children. Callers run it inside a transaction.
func (r *UserRepository) SyncIdentity(ctx context.Context, identity models.Identity, now time.Time) error {
	user := &models.User{
		ID:          identity.UserID,
		Role:        identity.Role,
		DisplayName: identity.Name,
		Email:       identity.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.Upsert(ctx, user); err != nil {
		return err
	}

	if identity.Role != models.RoleParent {
		return nil
	}
	children := make([]string, 0, len(identity.Children))
	for _, childID := range identity.Children {
		if childID != "" {
			children = append(children, childID)
		}
	}
	if err := r.UnlinkExcept(ctx, identity.UserID, children); err != nil {
		return fmt.Errorf("unlink stale children: %w", err)
	}
	for _, childID := range children {
		if err := r.LinkChild(ctx, identity.UserID, childID, now); err != nil {
			return fmt.Errorf("link child %s: %w", childID, err)
		}
	}
	return nil
}
