package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/taskcore/pkg/model"
)

const taskLogColumns = "l.id, l.task_id, l.event_type, l.actor_id, l.created_at"

// AppendTaskLog inserts the log entry and its field changes.
func (q *queries) AppendTaskLog(ctx context.Context, log *model.TaskLog) error {
	log.CreatedAt = utc(log.CreatedAt)
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO task_logs (task_id, event_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, log.TaskID, log.EventType, log.ActorID, log.CreatedAt).Scan(&log.ID)
	if err != nil {
		return translate("append task log", err)
	}

	for _, c := range log.Changes {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO task_log_changes (task_log_id, field_name, old_value, new_value)
			VALUES ($1, $2, $3, $4)
		`, log.ID, c.FieldName, c.OldValue, c.NewValue); err != nil {
			return translate("append task log change", err)
		}
	}
	return nil
}

func (q *queries) GetTaskLog(ctx context.Context, id int64) (*model.TaskLog, error) {
	var l model.TaskLog
	err := q.db.QueryRowContext(ctx, "SELECT "+taskLogColumns+" FROM task_logs l WHERE l.id = $1", id).
		Scan(&l.ID, &l.TaskID, &l.EventType, &l.ActorID, &l.CreatedAt)
	if err != nil {
		return nil, translate("get task log", err)
	}
	logs := []model.TaskLog{l}
	if err := q.attachChanges(ctx, logs); err != nil {
		return nil, err
	}
	return &logs[0], nil
}

func (q *queries) ListTaskLogs(ctx context.Context, taskID int64, page model.Page) ([]model.TaskLog, int, error) {
	return q.listTaskLogs(ctx, "l.task_id = $1", taskID, page)
}

func (q *queries) ListUserHistory(ctx context.Context, userID int64, page model.Page) ([]model.TaskLog, int, error) {
	return q.listTaskLogs(ctx,
		"(l.actor_id = $1 OR l.task_id IN (SELECT id FROM tasks WHERE created_by = $1 OR assignee_id = $1))",
		userID, page)
}

// listTaskLogs pages logs matching where, which binds its single argument
// as $1, newest first.
func (q *queries) listTaskLogs(ctx context.Context, where string, arg int64, page model.Page) ([]model.TaskLog, int, error) {
	page = page.Normalize()

	var total int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM task_logs l WHERE "+where, arg).Scan(&total); err != nil {
		return nil, 0, translate("count task logs", err)
	}

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+taskLogColumns+" FROM task_logs l WHERE "+where+
			" ORDER BY l.created_at DESC, l.id DESC LIMIT $2 OFFSET $3",
		arg, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, translate("list task logs", err)
	}
	logs := []model.TaskLog{}
	for rows.Next() {
		var l model.TaskLog
		if err := rows.Scan(&l.ID, &l.TaskID, &l.EventType, &l.ActorID, &l.CreatedAt); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan task log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("failed to list task logs: %w", err)
	}
	rows.Close()

	if err := q.attachChanges(ctx, logs); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// attachChanges loads the field changes of every log in place.
func (q *queries) attachChanges(ctx context.Context, logs []model.TaskLog) error {
	if len(logs) == 0 {
		return nil
	}
	index := make(map[int64]int, len(logs))
	ids := make([]int64, len(logs))
	for i := range logs {
		logs[i].Changes = []model.Change{}
		index[logs[i].ID] = i
		ids[i] = logs[i].ID
	}

	var a args
	rows, err := q.db.QueryContext(ctx,
		"SELECT task_log_id, field_name, old_value, new_value FROM task_log_changes WHERE task_log_id IN "+
			a.in(ids)+" ORDER BY id", a...)
	if err != nil {
		return translate("load task log changes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			logID    int64
			c        model.Change
			oldValue sql.NullString
			newValue sql.NullString
		)
		if err := rows.Scan(&logID, &c.FieldName, &oldValue, &newValue); err != nil {
			return fmt.Errorf("failed to scan task log change: %w", err)
		}
		c.OldValue, c.NewValue = stringPtr(oldValue), stringPtr(newValue)
		if i, ok := index[logID]; ok {
			logs[i].Changes = append(logs[i].Changes, c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load task log changes: %w", err)
	}
	return nil
}
