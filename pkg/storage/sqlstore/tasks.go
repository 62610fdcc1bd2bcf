package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/platinummonkey/taskcore/pkg/model"
)

const taskColumns = "t.id, t.title, t.description, t.status, t.priority, t.due_date, t.created_by, t.assignee_id, t.deleted_at, t.created_at, t.updated_at"

func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	var (
		t         model.Task
		dueDate   sql.NullTime
		deletedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &dueDate,
		&t.CreatedBy, &t.Assignee, &deletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.DueDate = timePtr(dueDate)
	t.DeletedAt = timePtr(deletedAt)
	t.Tags = []string{}
	return &t, nil
}

// CreateTask inserts task with its tags and assigns its ID.
func (q *queries) CreateTask(ctx context.Context, task *model.Task) error {
	task.CreatedAt = utc(task.CreatedAt)
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	task.Tags = model.NormalizeTags(task.Tags)

	err := q.db.QueryRowContext(ctx, `
		INSERT INTO tasks (title, description, status, priority, due_date, created_by, assignee_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, task.Title, task.Description, task.Status, task.Priority, nullableTime(task.DueDate),
		task.CreatedBy, task.Assignee, task.CreatedAt, task.UpdatedAt.UTC()).Scan(&task.ID)
	if err != nil {
		return translate("create task", err)
	}
	return q.insertTags(ctx, task.ID, task.Tags)
}

// GetTask returns the task even when soft-deleted.
func (q *queries) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	task, err := scanTask(q.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks t WHERE t.id = $1", id))
	if err != nil {
		return nil, translate("get task", err)
	}
	tags, err := q.tagsFor(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if tt, ok := tags[id]; ok {
		task.Tags = tt
	}
	return task, nil
}

// UpdateTask rewrites every mutable column and replaces the tag set.
func (q *queries) UpdateTask(ctx context.Context, task *model.Task) error {
	task.UpdatedAt = utc(task.UpdatedAt)
	task.Tags = model.NormalizeTags(task.Tags)

	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET title = $1, description = $2, status = $3, priority = $4, due_date = $5,
			assignee_id = $6, deleted_at = $7, updated_at = $8
		WHERE id = $9
	`, task.Title, task.Description, task.Status, task.Priority, nullableTime(task.DueDate),
		task.Assignee, nullableTime(task.DeletedAt), task.UpdatedAt, task.ID)
	if err := expectOne("update task", res, err); err != nil {
		return err
	}

	if _, err := q.db.ExecContext(ctx, "DELETE FROM task_tags WHERE task_id = $1", task.ID); err != nil {
		return translate("clear task tags", err)
	}
	return q.insertTags(ctx, task.ID, task.Tags)
}

// ListTasks returns live tasks matching filter, newest first, with the total
// match count. A set VisibleTo restricts results to tasks that user created
// or is assigned to.
func (q *queries) ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, int, error) {
	page := filter.Page.Normalize()

	var a args
	where := []string{"t.deleted_at IS NULL"}
	if id, ok := filter.VisibleTo.Get(); ok {
		ph := a.add(id)
		where = append(where, fmt.Sprintf("(t.created_by = %s OR t.assignee_id = %s)", ph, ph))
	}
	if filter.Status != "" {
		where = append(where, "t.status = "+a.add(filter.Status))
	}
	if filter.Priority != "" {
		where = append(where, "t.priority = "+a.add(filter.Priority))
	}
	if filter.DueFrom != nil {
		where = append(where, "t.due_date >= "+a.add(filter.DueFrom.UTC()))
	}
	if filter.DueTo != nil {
		where = append(where, "t.due_date <= "+a.add(filter.DueTo.UTC()))
	}
	if id, ok := filter.Assignee.Get(); ok {
		where = append(where, "t.assignee_id = "+a.add(id))
	}
	if tag := strings.ToLower(strings.TrimSpace(filter.Tag)); tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id = t.id AND tt.tag = "+a.add(tag)+")")
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks t"+clause, a...).Scan(&total); err != nil {
		return nil, 0, translate("count tasks", err)
	}

	query := "SELECT " + taskColumns + " FROM tasks t" + clause +
		" ORDER BY t.created_at DESC, t.id DESC LIMIT " + a.add(page.Limit) + " OFFSET " + a.add(page.Offset)
	rows, err := q.db.QueryContext(ctx, query, a...)
	if err != nil {
		return nil, 0, translate("list tasks", err)
	}
	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	rows.Close()

	if len(tasks) == 0 {
		return tasks, total, nil
	}
	ids := make([]int64, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	tags, err := q.tagsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range tasks {
		if tt, ok := tags[tasks[i].ID]; ok {
			tasks[i].Tags = tt
		}
	}
	return tasks, total, nil
}

func (q *queries) insertTags(ctx context.Context, taskID int64, tags []string) error {
	for _, tag := range tags {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO task_tags (task_id, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			taskID, tag,
		); err != nil {
			return translate("tag task", err)
		}
	}
	return nil
}

// tagsFor loads tags for the given tasks, sorted per task.
func (q *queries) tagsFor(ctx context.Context, taskIDs []int64) (map[int64][]string, error) {
	var a args
	query := "SELECT task_id, tag FROM task_tags WHERE task_id IN " + a.in(taskIDs) + " ORDER BY task_id, tag"
	rows, err := q.db.QueryContext(ctx, query, a...)
	if err != nil {
		return nil, translate("load task tags", err)
	}
	defer rows.Close()

	tags := make(map[int64][]string, len(taskIDs))
	for rows.Next() {
		var (
			id  int64
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan task tag: %w", err)
		}
		tags[id] = append(tags[id], tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load task tags: %w", err)
	}
	return tags, nil
}

func (q *queries) CreateSubtask(ctx context.Context, s *model.Subtask) error {
	s.CreatedAt = utc(s.CreatedAt)
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO subtasks (task_id, title, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, s.TaskID, s.Title, s.Status, s.CreatedAt, s.UpdatedAt.UTC()).Scan(&s.ID)
	return translate("create subtask", err)
}

func scanSubtask(row interface{ Scan(...any) error }) (*model.Subtask, error) {
	var (
		s         model.Subtask
		deletedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.TaskID, &s.Title, &s.Status, &deletedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.DeletedAt = timePtr(deletedAt)
	return &s, nil
}

// GetSubtask returns the subtask even when soft-deleted.
func (q *queries) GetSubtask(ctx context.Context, id int64) (*model.Subtask, error) {
	s, err := scanSubtask(q.db.QueryRowContext(ctx, `
		SELECT id, task_id, title, status, deleted_at, created_at, updated_at
		FROM subtasks WHERE id = $1
	`, id))
	if err != nil {
		return nil, translate("get subtask", err)
	}
	return s, nil
}

func (q *queries) ListSubtasks(ctx context.Context, taskID int64) ([]model.Subtask, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, task_id, title, status, deleted_at, created_at, updated_at
		FROM subtasks WHERE task_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, translate("list subtasks", err)
	}
	defer rows.Close()

	subtasks := []model.Subtask{}
	for rows.Next() {
		s, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}
		subtasks = append(subtasks, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	return subtasks, nil
}

func (q *queries) UpdateSubtask(ctx context.Context, s *model.Subtask) error {
	s.UpdatedAt = utc(s.UpdatedAt)
	res, err := q.db.ExecContext(ctx,
		"UPDATE subtasks SET title = $1, status = $2, deleted_at = $3, updated_at = $4 WHERE id = $5",
		s.Title, s.Status, nullableTime(s.DeletedAt), s.UpdatedAt, s.ID)
	return expectOne("update subtask", res, err)
}

func (q *queries) CreateComment(ctx context.Context, c *model.Comment) error {
	c.CreatedAt = utc(c.CreatedAt)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO comments (task_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.TaskID, c.AuthorID, c.Content, c.CreatedAt, c.UpdatedAt.UTC()).Scan(&c.ID)
	return translate("create comment", err)
}

func scanComment(row interface{ Scan(...any) error }) (*model.Comment, error) {
	var (
		c         model.Comment
		deletedAt sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &deletedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.DeletedAt = timePtr(deletedAt)
	return &c, nil
}

// GetComment returns the comment even when soft-deleted.
func (q *queries) GetComment(ctx context.Context, id int64) (*model.Comment, error) {
	c, err := scanComment(q.db.QueryRowContext(ctx, `
		SELECT id, task_id, author_id, content, deleted_at, created_at, updated_at
		FROM comments WHERE id = $1
	`, id))
	if err != nil {
		return nil, translate("get comment", err)
	}
	return c, nil
}

func (q *queries) ListComments(ctx context.Context, taskID int64, page model.Page) ([]model.Comment, int, error) {
	page = page.Normalize()

	var total int
	if err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM comments WHERE task_id = $1 AND deleted_at IS NULL", taskID,
	).Scan(&total); err != nil {
		return nil, 0, translate("count comments", err)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, task_id, author_id, content, deleted_at, created_at, updated_at
		FROM comments WHERE task_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, taskID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, translate("list comments", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, total, nil
}

func (q *queries) UpdateComment(ctx context.Context, c *model.Comment) error {
	c.UpdatedAt = utc(c.UpdatedAt)
	res, err := q.db.ExecContext(ctx,
		"UPDATE comments SET content = $1, deleted_at = $2, updated_at = $3 WHERE id = $4",
		c.Content, nullableTime(c.DeletedAt), c.UpdatedAt, c.ID)
	return expectOne("update comment", res, err)
}
