package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
)

// GroupRepository manages the role-bearing groups and their permissions.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs a GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// ListGroups returns every group ordered by name.
func (r *GroupRepository) ListGroups(ctx context.Context) ([]models.Group, error) {
	const query = `SELECT id, name FROM groups ORDER BY name`
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// EnsureGroup inserts the group if missing and returns its ID either way.
func (r *GroupRepository) EnsureGroup(ctx context.Context, name string) (string, error) {
	const query = `INSERT INTO groups (id, name) VALUES ($1, $2)
        ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id`
	var id string
	if err := r.db.GetContext(ctx, &id, query, uuid.NewString(), name); err != nil {
		return "", fmt.Errorf("ensure group %s: %w", name, err)
	}
	return id, nil
}

// ReplacePermissions swaps the permission set of a group atomically.
func (r *GroupRepository) ReplacePermissions(ctx context.Context, groupID string, permissions []models.GroupPermission) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin permissions transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM group_permissions WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("clear group permissions: %w", err)
	}

	const insert = `INSERT INTO group_permissions (group_id, resource, action) VALUES ($1, $2, $3)`
	for _, perm := range permissions {
		if _, err = tx.ExecContext(ctx, insert, groupID, perm.Resource, perm.Action); err != nil {
			return fmt.Errorf("insert permission %s:%s: %w", perm.Resource, perm.Action, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit permissions: %w", err)
	}
	return nil
}

// ListPermissions returns the permission rows of a group.
func (r *GroupRepository) ListPermissions(ctx context.Context, groupID string) ([]models.GroupPermission, error) {
	const query = `SELECT group_id, resource, action FROM group_permissions WHERE group_id = $1 ORDER BY resource, action`
	var permissions []models.GroupPermission
	if err := r.db.SelectContext(ctx, &permissions, query, groupID); err != nil {
		return nil, fmt.Errorf("list group permissions: %w", err)
	}
	return permissions, nil
}
