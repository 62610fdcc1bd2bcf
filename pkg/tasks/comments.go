package tasks

import (
	"context"
	"strings"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/authz"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/rbac"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// CreateComment posts content on a task the caller may modify.
func (s *Service) CreateComment(ctx context.Context, p *auth.Principal, taskID int64, content string) (*model.Comment, error) {
	content, err := validContent(content)
	if err != nil {
		return nil, err
	}

	var comment *model.Comment
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		task, err := liveTask(ctx, q, taskID)
		if err != nil {
			return err
		}
		if err := s.authorize(s.tasks.CanModify(p, task)); err != nil {
			return err
		}

		now := s.now()
		comment = &model.Comment{TaskID: task.ID, AuthorID: p.UserID, Content: content, CreatedAt: now, UpdatedAt: now}
		if err := q.CreateComment(ctx, comment); err != nil {
			return apperrors.Internal(err)
		}
		return s.notify(ctx, q, task, p, model.NotifyCommentCreated)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns a page of live comments, oldest first.
func (s *Service) ListComments(ctx context.Context, p *auth.Principal, taskID int64, page model.Page) (model.PageResult[model.Comment], error) {
	task, err := liveTask(ctx, s.store, taskID)
	if err != nil {
		return model.PageResult[model.Comment]{}, err
	}
	if err := s.authorize(s.tasks.CanView(p, task)); err != nil {
		return model.PageResult[model.Comment]{}, err
	}
	page = page.Normalize()
	comments, total, err := s.store.ListComments(ctx, task.ID, page)
	if err != nil {
		return model.PageResult[model.Comment]{}, apperrors.Internal(err)
	}
	return model.NewPageResult(comments, total, page), nil
}

// UpdateComment rewrites a comment. The caller must be able to modify the
// task and must have written the comment, unless they are a system admin.
func (s *Service) UpdateComment(ctx context.Context, p *auth.Principal, taskID, commentID int64, content string) (*model.Comment, error) {
	content, err := validContent(content)
	if err != nil {
		return nil, err
	}

	var comment *model.Comment
	err = s.store.WithTx(ctx, func(q storage.Queries) error {
		var err error
		if comment, err = s.authored(ctx, q, p, authz.Modify, taskID, commentID); err != nil {
			return err
		}
		if comment.Content == content {
			return nil
		}
		comment.Content = content
		comment.UpdatedAt = s.now()
		if err := q.UpdateComment(ctx, comment); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment soft-deletes a comment. The caller must be able to delete
// from the task and must have written the comment, unless they are a system
// admin.
func (s *Service) DeleteComment(ctx context.Context, p *auth.Principal, taskID, commentID int64) error {
	return s.store.WithTx(ctx, func(q storage.Queries) error {
		comment, err := s.authored(ctx, q, p, authz.Delete, taskID, commentID)
		if err != nil {
			return err
		}
		now := s.now()
		comment.DeletedAt = &now
		comment.UpdatedAt = now
		if err := q.UpdateComment(ctx, comment); err != nil {
			return apperrors.Internal(err)
		}
		return nil
	})
}

// authored loads a live comment of a live task after checking op on the
// task and that p wrote the comment.
func (s *Service) authored(ctx context.Context, q storage.TaskReader, p *auth.Principal, op authz.Operation, taskID, commentID int64) (*model.Comment, error) {
	task, err := liveTask(ctx, q, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(s.tasks.Check(p, op, task)); err != nil {
		return nil, err
	}
	comment, err := q.GetComment(ctx, commentID)
	if err != nil {
		return nil, notFound(err, apperrors.CodeCommentNotFound)
	}
	if comment.TaskID != task.ID || comment.DeletedAt != nil {
		return nil, apperrors.New(apperrors.CodeCommentNotFound)
	}
	if comment.AuthorID != p.UserID && !rbac.IsSystemAdmin(p) {
		return nil, s.authorize(apperrors.New(apperrors.CodeCommentAccessDenied))
	}
	return comment, nil
}

func validContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperrors.Newf(apperrors.CodeValidation, "content is required")
	}
	return content, nil
}
