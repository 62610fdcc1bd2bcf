package sqlstore

import (
	"context"
	"fmt"
	"time"
)

// Migration is one versioned schema change. SQL may use {{pk}}, {{bigint}}
// and {{ts}}, which are expanded per dialect.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema history in order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create identity tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id {{pk}},
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					full_name VARCHAR(255) NOT NULL DEFAULT '',
					enabled BOOLEAN NOT NULL DEFAULT FALSE,
					created_at {{ts}} NOT NULL,
					updated_at {{ts}} NOT NULL
				);

				CREATE TABLE IF NOT EXISTS roles (
					id {{pk}},
					name VARCHAR(100) NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					created_at {{ts}} NOT NULL,
					updated_at {{ts}} NOT NULL
				);

				CREATE TABLE IF NOT EXISTS permissions (
					id {{pk}},
					name VARCHAR(100) NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT ''
				);

				CREATE TABLE IF NOT EXISTS user_roles (
					user_id {{bigint}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id {{bigint}} NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, role_id)
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id {{bigint}} NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id {{bigint}} NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create token tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS verification_tokens (
					id {{pk}},
					user_id {{bigint}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(128) NOT NULL UNIQUE,
					expires_at {{ts}} NOT NULL,
					used_at {{ts}},
					created_at {{ts}} NOT NULL
				);

				CREATE TABLE IF NOT EXISTS refresh_tokens (
					id {{pk}},
					user_id {{bigint}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(128) NOT NULL UNIQUE,
					expires_at {{ts}} NOT NULL,
					revoked_at {{ts}},
					created_at {{ts}} NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_verification_tokens_user ON verification_tokens(user_id);
				CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create task tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS tasks (
					id {{pk}},
					title VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					status VARCHAR(32) NOT NULL,
					priority VARCHAR(32) NOT NULL,
					due_date DATE,
					created_by {{bigint}} NOT NULL REFERENCES users(id),
					assignee_id {{bigint}} REFERENCES users(id),
					deleted_at {{ts}},
					created_at {{ts}} NOT NULL,
					updated_at {{ts}} NOT NULL
				);

				CREATE TABLE IF NOT EXISTS task_tags (
					task_id {{bigint}} NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
					tag VARCHAR(64) NOT NULL,
					PRIMARY KEY (task_id, tag)
				);

				CREATE TABLE IF NOT EXISTS subtasks (
					id {{pk}},
					task_id {{bigint}} NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
					title VARCHAR(255) NOT NULL,
					status VARCHAR(32) NOT NULL,
					deleted_at {{ts}},
					created_at {{ts}} NOT NULL,
					updated_at {{ts}} NOT NULL
				);

				CREATE TABLE IF NOT EXISTS comments (
					id {{pk}},
					task_id {{bigint}} NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
					author_id {{bigint}} NOT NULL REFERENCES users(id),
					content TEXT NOT NULL,
					deleted_at {{ts}},
					created_at {{ts}} NOT NULL,
					updated_at {{ts}} NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_tasks_created_by ON tasks(created_by);
				CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);
				CREATE INDEX IF NOT EXISTS idx_task_tags_tag ON task_tags(tag);
				CREATE INDEX IF NOT EXISTS idx_subtasks_task ON subtasks(task_id);
				CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id);
			`,
		},
		{
			Version:     4,
			Description: "Create task log tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS task_logs (
					id {{pk}},
					task_id {{bigint}} NOT NULL,
					event_type VARCHAR(64) NOT NULL,
					actor_id {{bigint}},
					created_at {{ts}} NOT NULL
				);

				CREATE TABLE IF NOT EXISTS task_log_changes (
					id {{pk}},
					task_log_id {{bigint}} NOT NULL REFERENCES task_logs(id) ON DELETE CASCADE,
					field_name VARCHAR(64) NOT NULL,
					old_value TEXT,
					new_value TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_task_logs_task ON task_logs(task_id);
				CREATE INDEX IF NOT EXISTS idx_task_logs_actor ON task_logs(actor_id);
				CREATE INDEX IF NOT EXISTS idx_task_log_changes_log ON task_log_changes(task_log_id);
			`,
		},
		{
			Version:     5,
			Description: "Create notifications table",
			SQL: `
				CREATE TABLE IF NOT EXISTS notifications (
					id {{pk}},
					recipient_id {{bigint}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					type VARCHAR(64) NOT NULL,
					title VARCHAR(255) NOT NULL,
					message TEXT NOT NULL,
					entity_type VARCHAR(64) NOT NULL,
					entity_id {{bigint}} NOT NULL,
					actor_id {{bigint}},
					read_at {{ts}},
					created_at {{ts}} NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, read_at);
			`,
		},
	}
}

// Migrate applies every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.replacer().Replace(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at {{ts}} NOT NULL
		)
	`))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	rows.Close()

	replacer := s.dialect.replacer()
	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, replacer.Replace(m.SQL)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
