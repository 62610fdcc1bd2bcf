package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// Service is a caller's notification inbox.
type Service struct {
	store storage.NotificationStore
	now   func() time.Time
}

// NewService creates an inbox service.
func NewService(store storage.NotificationStore) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ListMine returns the caller's notifications, newest first.
func (s *Service) ListMine(ctx context.Context, p *auth.Principal, unreadOnly bool, page model.Page) (model.PageResult[model.Notification], error) {
	if p == nil {
		return model.PageResult[model.Notification]{}, apperrors.New(apperrors.CodeUnauthorized)
	}
	page = page.Normalize()
	items, total, err := s.store.ListNotifications(ctx, p.UserID, unreadOnly, page)
	if err != nil {
		return model.PageResult[model.Notification]{}, apperrors.Internal(err)
	}
	return model.NewPageResult(items, total, page), nil
}

// UnreadCount returns how many of the caller's notifications are unread.
func (s *Service) UnreadCount(ctx context.Context, p *auth.Principal) (int, error) {
	if p == nil {
		return 0, apperrors.New(apperrors.CodeUnauthorized)
	}
	n, err := s.store.CountUnreadNotifications(ctx, p.UserID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}

// MarkRead marks one of the caller's notifications read. Marking an already
// read notification returns it unchanged.
func (s *Service) MarkRead(ctx context.Context, p *auth.Principal, id int64) (*model.Notification, error) {
	if p == nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized)
	}
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.New(apperrors.CodeNotificationNotFound)
		}
		return nil, apperrors.Internal(err)
	}
	if n.RecipientID != p.UserID {
		return nil, apperrors.New(apperrors.CodeNotificationDenied)
	}
	if n.IsRead() {
		return n, nil
	}

	now := s.now()
	if err := s.store.MarkNotificationRead(ctx, n.ID, now); err != nil {
		return nil, apperrors.Internal(err)
	}
	n.ReadAt = &now
	return n, nil
}

// MarkAllRead marks every unread notification of the caller and returns how
// many changed.
func (s *Service) MarkAllRead(ctx context.Context, p *auth.Principal) (int64, error) {
	if p == nil {
		return 0, apperrors.New(apperrors.CodeUnauthorized)
	}
	n, err := s.store.MarkAllNotificationsRead(ctx, p.UserID, s.now())
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}
