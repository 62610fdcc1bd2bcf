package sqlstore

import (
	"context"
	"fmt"

	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

const roleSelect = `
	SELECT r.id, r.name, r.description, r.created_at, r.updated_at, p.id, p.name, p.description
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id
`

// CreateRole inserts role and links its permissions by ID.
func (q *queries) CreateRole(ctx context.Context, role *model.Role) error {
	role.CreatedAt = utc(role.CreatedAt)
	if role.UpdatedAt.IsZero() {
		role.UpdatedAt = role.CreatedAt
	}
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO roles (name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, role.Name, role.Description, role.CreatedAt, role.UpdatedAt.UTC()).Scan(&role.ID)
	if err != nil {
		return translate("create role", err)
	}
	return q.SetRolePermissions(ctx, role.ID, permissionIDs(role.Permissions))
}

func (q *queries) GetRoleByID(ctx context.Context, id int64) (*model.Role, error) {
	return q.getRole(ctx, roleSelect+" WHERE r.id = $1 ORDER BY r.id, p.id", id)
}

func (q *queries) GetRoleByName(ctx context.Context, name string) (*model.Role, error) {
	return q.getRole(ctx, roleSelect+" WHERE r.name = $1 ORDER BY r.id, p.id", name)
}

func (q *queries) getRole(ctx context.Context, query string, arg any) (*model.Role, error) {
	roles, err := q.queryRoles(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, storage.ErrNotFound
	}
	return &roles[0], nil
}

func (q *queries) ListRoles(ctx context.Context) ([]model.Role, error) {
	return q.queryRoles(ctx, roleSelect+" ORDER BY r.id, p.id")
}

func (q *queries) UpdateRole(ctx context.Context, role *model.Role) error {
	role.UpdatedAt = utc(role.UpdatedAt)
	res, err := q.db.ExecContext(ctx,
		"UPDATE roles SET name = $1, description = $2, updated_at = $3 WHERE id = $4",
		role.Name, role.Description, role.UpdatedAt, role.ID)
	return expectOne("update role", res, err)
}

// SetRolePermissions replaces the role's permission set.
func (q *queries) SetRolePermissions(ctx context.Context, roleID int64, ids []int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id = $1", roleID); err != nil {
		return translate("clear role permissions", err)
	}
	for _, id := range ids {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			roleID, id,
		); err != nil {
			return translate("grant permission", err)
		}
	}
	return nil
}

// DeleteRole removes the role and its assignments.
func (q *queries) DeleteRole(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM user_roles WHERE role_id = $1", id); err != nil {
		return translate("unassign role", err)
	}
	if _, err := q.db.ExecContext(ctx, "DELETE FROM role_permissions WHERE role_id = $1", id); err != nil {
		return translate("clear role permissions", err)
	}
	res, err := q.db.ExecContext(ctx, "DELETE FROM roles WHERE id = $1", id)
	return expectOne("delete role", res, err)
}

func (q *queries) CreatePermission(ctx context.Context, perm *model.Permission) error {
	err := q.db.QueryRowContext(ctx,
		"INSERT INTO permissions (name, description) VALUES ($1, $2) RETURNING id",
		perm.Name, perm.Description,
	).Scan(&perm.ID)
	return translate("create permission", err)
}

func (q *queries) GetPermissionByID(ctx context.Context, id int64) (*model.Permission, error) {
	var p model.Permission
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM permissions WHERE id = $1", id,
	).Scan(&p.ID, &p.Name, &p.Description)
	if err != nil {
		return nil, translate("get permission", err)
	}
	return &p, nil
}

func (q *queries) GetPermissionByName(ctx context.Context, name string) (*model.Permission, error) {
	var p model.Permission
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM permissions WHERE name = $1", name,
	).Scan(&p.ID, &p.Name, &p.Description)
	if err != nil {
		return nil, translate("get permission by name", err)
	}
	return &p, nil
}

func (q *queries) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, name, description FROM permissions ORDER BY id")
	if err != nil {
		return nil, translate("list permissions", err)
	}
	defer rows.Close()

	perms := []model.Permission{}
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	return perms, nil
}

func (q *queries) UpdatePermission(ctx context.Context, perm *model.Permission) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE permissions SET name = $1, description = $2 WHERE id = $3",
		perm.Name, perm.Description, perm.ID)
	return expectOne("update permission", res, err)
}

// DeletePermission removes the permission from every role, then deletes it.
func (q *queries) DeletePermission(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM role_permissions WHERE permission_id = $1", id); err != nil {
		return translate("revoke permission", err)
	}
	res, err := q.db.ExecContext(ctx, "DELETE FROM permissions WHERE id = $1", id)
	return expectOne("delete permission", res, err)
}

func permissionIDs(perms []model.Permission) []int64 {
	ids := make([]int64, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	return ids
}
