package audit

import (
	"context"
	"errors"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/authz"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// QueryService reads task logs on behalf of a caller.
type QueryService struct {
	store storage.Queries
	guard *authz.Guard
}

// NewQueryService creates a query service checking access with the task guard.
func NewQueryService(store storage.Queries) *QueryService {
	return &QueryService{store: store, guard: authz.TaskGuard}
}

// ListByTask returns the logs of a task, newest first. Logs of a soft-deleted
// task stay readable so its deletion can be inspected.
func (s *QueryService) ListByTask(ctx context.Context, p *auth.Principal, taskID int64, page model.Page) (model.PageResult[model.TaskLog], error) {
	page = page.Normalize()
	if err := s.canViewTask(ctx, p, taskID, apperrors.CodeTaskNotFound); err != nil {
		return model.PageResult[model.TaskLog]{}, err
	}
	logs, total, err := s.store.ListTaskLogs(ctx, taskID, page)
	if err != nil {
		return model.PageResult[model.TaskLog]{}, apperrors.Internal(err)
	}
	return model.NewPageResult(logs, total, page), nil
}

// Detail returns one log if the caller may view its task.
func (s *QueryService) Detail(ctx context.Context, p *auth.Principal, logID int64) (*model.TaskLog, error) {
	if p == nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized)
	}
	entry, err := s.store.GetTaskLog(ctx, logID)
	if err != nil {
		return nil, notFound(err, apperrors.CodeTaskLogNotFound)
	}
	if err := s.canViewTask(ctx, p, entry.TaskID, apperrors.CodeTaskLogNotFound); err != nil {
		return nil, err
	}
	return entry, nil
}

// MyHistory returns logs the caller performed or that concern tasks the
// caller created or is assigned to.
func (s *QueryService) MyHistory(ctx context.Context, p *auth.Principal, page model.Page) (model.PageResult[model.TaskLog], error) {
	if p == nil {
		return model.PageResult[model.TaskLog]{}, apperrors.New(apperrors.CodeUnauthorized)
	}
	page = page.Normalize()
	logs, total, err := s.store.ListUserHistory(ctx, p.UserID, page)
	if err != nil {
		return model.PageResult[model.TaskLog]{}, apperrors.Internal(err)
	}
	return model.NewPageResult(logs, total, page), nil
}

func (s *QueryService) canViewTask(ctx context.Context, p *auth.Principal, taskID int64, missing apperrors.Code) error {
	if p == nil {
		return apperrors.New(apperrors.CodeUnauthorized)
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return notFound(err, missing)
	}
	return s.guard.CanView(p, task)
}

func notFound(err error, code apperrors.Code) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(code)
	}
	return apperrors.Internal(err)
}
