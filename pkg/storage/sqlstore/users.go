package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

const userColumns = "id, email, password_hash, full_name, enabled, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Enabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts user and assigns its ID. Roles on the struct are
// attached through user_roles.
func (q *queries) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = utc(user.CreatedAt)
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	err := q.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, full_name, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, user.Email, user.PasswordHash, user.FullName, user.Enabled, user.CreatedAt, user.UpdatedAt.UTC()).Scan(&user.ID)
	if err != nil {
		return translate("create user", err)
	}

	if len(user.Roles) == 0 {
		return nil
	}
	ids := make([]int64, len(user.Roles))
	for i, r := range user.Roles {
		ids[i] = r.ID
	}
	return q.SetUserRoles(ctx, user.ID, ids)
}

func (q *queries) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, translate("get user", err)
	}
	if user.Roles, err = q.userRoles(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail expects email already normalized by the caller.
func (q *queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if err != nil {
		return nil, translate("get user by email", err)
	}
	if user.Roles, err = q.userRoles(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (q *queries) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = $1", email).Scan(&n)
	if err != nil {
		return false, translate("check email", err)
	}
	return n > 0, nil
}

func (q *queries) ListUsers(ctx context.Context, page model.Page) ([]model.User, int, error) {
	page = page.Normalize()

	var total int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, translate("count users", err)
	}

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id LIMIT $1 OFFSET $2", page.Limit, page.Offset)
	if err != nil {
		return nil, 0, translate("list users", err)
	}
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	rows.Close()

	for i := range users {
		if users[i].Roles, err = q.userRoles(ctx, users[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

// UpdateUser writes the mutable profile columns. Roles are changed only
// through SetUserRoles.
func (q *queries) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = utc(user.UpdatedAt)
	res, err := q.db.ExecContext(ctx, `
		UPDATE users SET email = $1, password_hash = $2, full_name = $3, enabled = $4, updated_at = $5
		WHERE id = $6
	`, user.Email, user.PasswordHash, user.FullName, user.Enabled, user.UpdatedAt, user.ID)
	return expectOne("update user", res, err)
}

// SetUserRoles replaces the user's role set.
func (q *queries) SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", userID); err != nil {
		return translate("clear user roles", err)
	}
	for _, roleID := range roleIDs {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			userID, roleID,
		); err != nil {
			return translate("assign role", err)
		}
	}
	return nil
}

// userRoles loads the user's roles with their permissions.
func (q *queries) userRoles(ctx context.Context, userID int64) ([]model.Role, error) {
	return q.queryRoles(ctx, `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at, p.id, p.name, p.description
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY r.id, p.id
	`, userID)
}

// queryRoles folds role rows left-joined with permissions into roles.
func (q *queries) queryRoles(ctx context.Context, query string, args ...any) ([]model.Role, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate("query roles", err)
	}
	defer rows.Close()

	roles := []model.Role{}
	for rows.Next() {
		var (
			r         model.Role
			permID    sql.NullInt64
			permName  sql.NullString
			permDesc  sql.NullString
			createdAt time.Time
			updatedAt time.Time
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &createdAt, &updatedAt, &permID, &permName, &permDesc); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if n := len(roles); n == 0 || roles[n-1].ID != r.ID {
			r.CreatedAt, r.UpdatedAt = createdAt, updatedAt
			r.Permissions = []model.Permission{}
			roles = append(roles, r)
		}
		if permID.Valid {
			last := &roles[len(roles)-1]
			last.Permissions = append(last.Permissions, model.Permission{
				ID:          permID.Int64,
				Name:        permName.String,
				Description: permDesc.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	return roles, nil
}

var _ storage.Queries = (*queries)(nil)
