package tasks

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// SubtaskInput creates a subtask. Status defaults to TODO.
type SubtaskInput struct {
	Title  string              `json:"title"`
	Status model.SubtaskStatus `json:"status"`
}

// SubtaskUpdate changes a subtask; nil fields are left unchanged.
type SubtaskUpdate struct {
	Title  *string              `json:"title"`
	Status *model.SubtaskStatus `json:"status"`
}

// CreateSubtask adds a subtask to a task the caller may modify.
func (s *Service) CreateSubtask(ctx context.Context, p *auth.Principal, taskID int64, in SubtaskInput) (*model.Subtask, error) {
	title, err := validSubtaskTitle(in.Title)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = model.SubtaskTodo
	}
	if !status.Valid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown subtask status %q", status)
	}

	var subtask *model.Subtask
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		task, err := liveTask(ctx, q, taskID)
		if err != nil {
			return err
		}
		if err := s.authorize(s.tasks.CanModify(p, task)); err != nil {
			return err
		}

		now := s.now()
		subtask = &model.Subtask{TaskID: task.ID, Title: title, Status: status, CreatedAt: now, UpdatedAt: now}
		if err := q.CreateSubtask(ctx, subtask); err != nil {
			return apperrors.Internal(err)
		}
		return s.notify(ctx, q, task, p, model.NotifySubtaskCreated)
	})
	if err != nil {
		return nil, err
	}
	return subtask, nil
}

// GetSubtask returns a live subtask of a task the caller may view.
func (s *Service) GetSubtask(ctx context.Context, p *auth.Principal, taskID, subtaskID int64) (*model.Subtask, error) {
	task, err := liveTask(ctx, s.store, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(s.tasks.CanView(p, task)); err != nil {
		return nil, err
	}
	return liveSubtask(ctx, s.store, task.ID, subtaskID)
}

// ListSubtasks returns the live subtasks of a task, oldest first.
func (s *Service) ListSubtasks(ctx context.Context, p *auth.Principal, taskID int64) ([]model.Subtask, error) {
	task, err := liveTask(ctx, s.store, taskID)
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
	if subtasks == nil {
		subtasks = []model.Subtask{}
	}
	return subtasks, nil
}

// UpdateSubtask applies the provided fields. An update that changes nothing
// is not written and notifies nobody.
func (s *Service) UpdateSubtask(ctx context.Context, p *auth.Principal, taskID, subtaskID int64, in SubtaskUpdate) (*model.Subtask, error) {
	var title string
	if in.Title != nil {
		var err error
		if title, err = validSubtaskTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown subtask status %q", *in.Status)
	}

	var subtask *model.Subtask
	err := s.store.WithTx(ctx, func(q storage.Queries) error {
		task, err := liveTask(ctx, q, taskID)
		if err != nil {
			return err
		}
		if err := s.authorize(s.tasks.CanModify(p, task)); err != nil {
			return err
		}
		if subtask, err = liveSubtask(ctx, q, task.ID, subtaskID); err != nil {
			return err
		}

		changed := false
		if in.Title != nil && title != subtask.Title {
			subtask.Title = title
			changed = true
		}
		if in.Status != nil && *in.Status != subtask.Status {
			subtask.Status = *in.Status
			changed = true
		}
		if !changed {
			return nil
		}

		subtask.UpdatedAt = s.now()
		if err := q.UpdateSubtask(ctx, subtask); err != nil {
			return apperrors.Internal(err)
		}
		return s.notify(ctx, q, task, p, model.NotifySubtaskUpdated)
	})
	if err != nil {
		return nil, err
	}
	return subtask, nil
}

// DeleteSubtask soft-deletes the subtask.
func (s *Service) DeleteSubtask(ctx context.Context, p *auth.Principal, taskID, subtaskID int64) error {
	return s.store.WithTx(ctx, func(q storage.Queries) error {
		task, err := liveTask(ctx, q, taskID)
		if err != nil {
			return err
		}
		if err := s.authorize(s.tasks.CanDelete(p, task)); err != nil {
			return err
		}
		subtask, err := liveSubtask(ctx, q, task.ID, subtaskID)
		if err != nil {
			return err
		}

		now := s.now()
		subtask.DeletedAt = &now
		subtask.UpdatedAt = now
		if err := q.UpdateSubtask(ctx, subtask); err != nil {
			return apperrors.Internal(err)
		}
		return s.notify(ctx, q, task, p, model.NotifySubtaskDeleted)
	})
}

// notify fans out kind on behalf of p.
func (s *Service) notify(ctx context.Context, q storage.Queries, task *model.Task, p *auth.Principal, kind model.NotificationType) error {
	if _, err := s.notifier.FanOut(ctx, q, task, model.SomeID(p.UserID), kind); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// liveSubtask loads a subtask of taskID that has not been deleted. A subtask
// belonging to another task is reported as missing.
func liveSubtask(ctx context.Context, q storage.TaskReader, taskID, id int64) (*model.Subtask, error) {
	subtask, err := q.GetSubtask(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.CodeSubtaskNotFound)
	}
	if subtask.TaskID != taskID || subtask.DeletedAt != nil {
		return nil, apperrors.New(apperrors.CodeSubtaskNotFound)
	}
	return subtask, nil
}

func validSubtaskTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperrors.Newf(apperrors.CodeValidation, "title is required")
	}
	if utf8.RuneCountInString(title) > MaxSubtaskTitleLength {
		return "", apperrors.Newf(apperrors.CodeValidation, "title must be at most %d characters", MaxSubtaskTitleLength)
	}
	return title, nil
}
