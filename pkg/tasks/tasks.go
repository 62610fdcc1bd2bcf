package tasks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/audit"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/authz"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/rbac"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// CreateInput creates a task. Status defaults to TODO and priority to MEDIUM.
type CreateInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      model.TaskStatus   `json:"status"`
	Priority    model.TaskPriority `json:"priority"`
	DueDate     *string            `json:"dueDate"`
	AssigneeID  model.OptionalID   `json:"assigneeId"`
	Tags        []string           `json:"tags"`
}

// UpdateInput changes a task. Nil fields are left unchanged; an empty
// DueDate clears the due date and an empty Tags clears the tags.
type UpdateInput struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Status      *model.TaskStatus   `json:"status"`
	Priority    *model.TaskPriority `json:"priority"`
	DueDate     *string             `json:"dueDate"`
	AssigneeID  *int64              `json:"assigneeId"`
	Tags        *[]string           `json:"tags"`
}

// ListQuery filters task listings. Dates use model.DateLayout.
type ListQuery struct {
	Status     model.TaskStatus
	Priority   model.TaskPriority
	DueFrom    string
	DueTo      string
	Tag        string
	AssigneeID model.OptionalID
	Page       model.Page
}

// Detail is a task with its live subtasks and most recent comments.
type Detail struct {
	model.Task
	Subtasks []model.Subtask `json:"subtasks"`
	Comments []model.Comment `json:"comments"`
}

// Create adds a task owned by the caller.
func (s *Service) Create(ctx context.Context, p *auth.Principal, in CreateInput) (task *model.Task, err error) {
	ctx, span := observability.StartSpan(ctx, "tasks.Create")
	defer func() { observability.EndSpan(span, err) }()

	if err := s.authorize(s.tasks.Require(p, rbac.PermTaskCreate)); err != nil {
		return nil, err
	}

	title, err := validTitle(in.Title)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = model.TaskStatusTodo
	}
	if !status.Valid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown status %q", status)
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown priority %q", priority)
	}
	var due *time.Time
	if in.DueDate != nil {
		if due, err = parseDate(*in.DueDate); err != nil {
			return nil, err
		}
	}

	actor := model.SomeID(p.UserID)
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		if id, ok := in.AssigneeID.Get(); ok {
			if err := validAssignee(ctx, q, id); err != nil {
				return err
			}
		}

		now := s.now()
		task = &model.Task{
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Status:      status,
			Priority:    priority,
			DueDate:     due,
			CreatedBy:   p.UserID,
			Assignee:    in.AssigneeID,
			Tags:        model.NormalizeTags(in.Tags),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := q.CreateTask(ctx, task); err != nil {
			return apperrors.Internal(err)
		}
		return s.record(ctx, q, task, actor, model.NotifyTaskCreated, model.EventTaskCreated)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("task.id", task.ID))
	observability.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"task_id":  task.ID,
		"actor_id": p.UserID,
	}).Info("Task created")
	return task, nil
}

// Get returns a live task the caller may view.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id int64) (*Detail, error) {
	task, err := liveTask(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(s.tasks.CanView(p, task)); err != nil {
		return nil, err
	}

	subtasks, err := s.store.ListSubtasks(ctx, task.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	comments, _, err := s.store.ListComments(ctx, task.ID, model.Page{Limit: DetailComments})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if subtasks == nil {
		subtasks = []model.Subtask{}
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	return &Detail{Task: *task, Subtasks: subtasks, Comments: comments}, nil
}

// List returns live tasks visible to the caller, newest first.
func (s *Service) List(ctx context.Context, p *auth.Principal, lq ListQuery) (model.PageResult[model.Task], error) {
	if err := s.authorize(s.tasks.Require(p, rbac.PermTaskRead)); err != nil {
		return model.PageResult[model.Task]{}, err
	}
	if lq.Status != "" && !lq.Status.Valid() {
		return model.PageResult[model.Task]{}, apperrors.Newf(apperrors.CodeValidation, "unknown status %q", lq.Status)
	}
	if lq.Priority != "" && !lq.Priority.Valid() {
		return model.PageResult[model.Task]{}, apperrors.Newf(apperrors.CodeValidation, "unknown priority %q", lq.Priority)
	}

	filter := model.TaskFilter{
		VisibleTo: authz.Visibility(p),
		Status:    lq.Status,
		Priority:  lq.Priority,
		Tag:       lq.Tag,
		Assignee:  lq.AssigneeID,
		Page:      lq.Page.Normalize(),
	}
	var err error
	if lq.DueFrom != "" {
		if filter.DueFrom, err = parseDate(lq.DueFrom); err != nil {
			return model.PageResult[model.Task]{}, err
		}
	}
	if lq.DueTo != "" {
		if filter.DueTo, err = parseDate(lq.DueTo); err != nil {
			return model.PageResult[model.Task]{}, err
		}
	}

	tasks, total, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return model.PageResult[model.Task]{}, apperrors.Internal(err)
	}
	return model.NewPageResult(tasks, total, filter.Page), nil
}

// Update applies the provided fields. When nothing differs the task is not
// written and no log or notification is produced.
func (s *Service) Update(ctx context.Context, p *auth.Principal, id int64, in UpdateInput) (task *model.Task, err error) {
	ctx, span := observability.StartSpan(ctx, "tasks.Update", attribute.Int64("task.id", id))
	defer func() { observability.EndSpan(span, err) }()

	next, err := newPatch(in)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		current, err := liveTask(ctx, q, id)
		if err != nil {
			return err
		}
		if err := s.authorize(s.tasks.CanModify(p, current)); err != nil {
			return err
		}
		if in.AssigneeID != nil {
			if err := validAssignee(ctx, q, *in.AssigneeID); err != nil {
				return err
			}
		}

		updated := *current
		next.apply(&updated)
		changes := diff(current, &updated)
		task = &updated
		if !hasChanges(changes) {
			task = current
			return nil
		}

		task.UpdatedAt = s.now()
		if err := q.UpdateTask(ctx, task); err != nil {
			return apperrors.Internal(err)
		}
		if _, err := s.notifier.FanOut(ctx, q, task, model.SomeID(p.UserID), model.NotifyTaskUpdated); err != nil {
			return apperrors.Internal(err)
		}
		if _, err := s.audit.LogWithChanges(ctx, q, task.ID, model.SomeID(p.UserID), model.EventTaskUpdated, changes...); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Assign makes assigneeID the task's assignee and notifies only them. The
// notification goes out even when the assignee is unchanged; the log entry
// does not.
func (s *Service) Assign(ctx context.Context, p *auth.Principal, id, assigneeID int64) (task *model.Task, err error) {
	ctx, span := observability.StartSpan(ctx, "tasks.Assign",
		attribute.Int64("task.id", id), attribute.Int64("task.assignee_id", assigneeID))
	defer func() { observability.EndSpan(span, err) }()

	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		task, err = liveTask(ctx, q, id)
		if err != nil {
			return err
		}
		if err := s.authorize(s.tasks.CanModify(p, task)); err != nil {
			return err
		}
		if err := validAssignee(ctx, q, assigneeID); err != nil {
			return err
		}

		change := audit.Change("assigneeId", task.Assignee, model.SomeID(assigneeID))
		if change != nil {
			task.Assignee = model.SomeID(assigneeID)
			task.UpdatedAt = s.now()
			if err := q.UpdateTask(ctx, task); err != nil {
				return apperrors.Internal(err)
			}
		}
		if _, err := s.notifier.FanOut(ctx, q, task, model.SomeID(p.UserID), model.NotifyTaskAssigned); err != nil {
			return apperrors.Internal(err)
		}
		if _, err := s.audit.LogWithChanges(ctx, q, task.ID, model.SomeID(p.UserID), model.EventTaskAssigned, change); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateStatus moves the task to status. Watchers are notified even when the
// status is unchanged; only an actual change is logged.
func (s *Service) UpdateStatus(ctx context.Context, p *auth.Principal, id int64, status model.TaskStatus) (task *model.Task, err error) {
	ctx, span := observability.StartSpan(ctx, "tasks.UpdateStatus",
		attribute.Int64("task.id", id), attribute.String("task.status", string(status)))
	defer func() { observability.EndSpan(span, err) }()

	if !status.Valid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown status %q", status)
	}

	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		task, err = liveTask(ctx, q, id)
		if err != nil {
			return err
		}
		if err := s.authorize(s.tasks.CanModify(p, task)); err != nil {
			return err
		}

		change := audit.Change("status", task.Status, status)
		if change != nil {
			task.Status = status
			task.UpdatedAt = s.now()
			if err := q.UpdateTask(ctx, task); err != nil {
				return apperrors.Internal(err)
			}
		}
		if _, err := s.notifier.FanOut(ctx, q, task, model.SomeID(p.UserID), model.NotifyTaskStatusUpdated); err != nil {
			return apperrors.Internal(err)
		}
		if _, err := s.audit.LogWithChanges(ctx, q, task.ID, model.SomeID(p.UserID), model.EventTaskStatusUpdated, change); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Delete soft-deletes the task. Deleting an already deleted task succeeds
// without side effects.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id int64) (err error) {
	ctx, span := observability.StartSpan(ctx, "tasks.Delete", attribute.Int64("task.id", id))
	defer func() { observability.EndSpan(span, err) }()

	return s.store.WithTx(ctx, func(q storage.Queries) error {
		task, err := q.GetTask(ctx, id)
		if err != nil {
			return notFound(err, apperrors.CodeTaskNotFound)
		}
		if err := s.authorize(s.tasks.CanDelete(p, task)); err != nil {
			return err
		}
		if task.IsDeleted() {
			return nil
		}

		now := s.now()
		change := audit.Change("deletedAt", nil, now)
		task.DeletedAt = &now
		task.UpdatedAt = now
		if err := q.UpdateTask(ctx, task); err != nil {
			return apperrors.Internal(err)
		}
		if _, err := s.notifier.FanOut(ctx, q, task, model.SomeID(p.UserID), model.NotifyTaskDeleted); err != nil {
			return apperrors.Internal(err)
		}
		if _, err := s.audit.LogWithChanges(ctx, q, task.ID, model.SomeID(p.UserID), model.EventTaskDeleted, change); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
}

// record fans out kind and appends a simple log entry for event.
func (s *Service) record(ctx context.Context, q storage.Queries, task *model.Task, actor model.OptionalID,
	kind model.NotificationType, event model.TaskLogEventType) error {
	if _, err := s.notifier.FanOut(ctx, q, task, actor, kind); err != nil {
		return apperrors.Internal(err)
	}
	if _, err := s.audit.LogSimple(ctx, q, task.ID, actor, event); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// patch is a validated UpdateInput.
type patch struct {
	in      UpdateInput
	title   string
	dueSet  bool
	dueDate *time.Time
}

func newPatch(in UpdateInput) (*patch, error) {
	pt := &patch{in: in}
	if in.Title != nil {
		title, err := validTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		pt.title = title
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown status %q", *in.Status)
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown priority %q", *in.Priority)
	}
	if in.DueDate != nil {
		pt.dueSet = true
		if *in.DueDate != "" {
			due, err := parseDate(*in.DueDate)
			if err != nil {
				return nil, err
			}
			pt.dueDate = due
		}
	}
	return pt, nil
}

func (pt *patch) apply(t *model.Task) {
	if pt.in.Title != nil {
		t.Title = pt.title
	}
	if pt.in.Description != nil {
		t.Description = strings.TrimSpace(*pt.in.Description)
	}
	if pt.in.Status != nil {
		t.Status = *pt.in.Status
	}
	if pt.in.Priority != nil {
		t.Priority = *pt.in.Priority
	}
	if pt.dueSet {
		t.DueDate = pt.dueDate
	}
	if pt.in.AssigneeID != nil {
		t.Assignee = model.SomeID(*pt.in.AssigneeID)
	}
	if pt.in.Tags != nil {
		t.Tags = model.NormalizeTags(*pt.in.Tags)
	}
}

// diff compares the audited fields of two versions of a task.
func diff(old, updated *model.Task) []*model.Change {
	return []*model.Change{
		audit.Change("title", old.Title, updated.Title),
		audit.Change("description", old.Description, updated.Description),
		audit.Change("status", old.Status, updated.Status),
		audit.Change("priority", old.Priority, updated.Priority),
		audit.Change("dueDate", model.FormatDate(old.DueDate), model.FormatDate(updated.DueDate)),
		audit.Change("assigneeId", old.Assignee, updated.Assignee),
		audit.Change("tags", joinTags(old.Tags), joinTags(updated.Tags)),
	}
}

func hasChanges(changes []*model.Change) bool {
	for _, c := range changes {
		if c != nil {
			return true
		}
	}
	return false
}

// joinTags renders a tag set in a stable order.
func joinTags(tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperrors.Newf(apperrors.CodeValidation, "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", apperrors.Newf(apperrors.CodeValidation, "title must be at most %d characters", MaxTitleLength)
	}
	return title, nil
}

func parseDate(s string) (*time.Time, error) {
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeValidation, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return &d, nil
}

// validAssignee rejects an unknown assignee as invalid input.
func validAssignee(ctx context.Context, q storage.UserReader, id int64) error {
	_, err := q.GetUserByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Newf(apperrors.CodeValidation, "assignee %d does not exist", id)
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	return nil
}
