package tasks

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/audit"
	"github.com/platinummonkey/taskcore/pkg/authz"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/notifications"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

const (
	// MaxTitleLength bounds task titles, in characters.
	MaxTitleLength = 50
	// MaxSubtaskTitleLength bounds subtask titles, in characters.
	MaxSubtaskTitleLength = 255
	// DetailComments is how many comments Get returns with a task.
	DetailComments = 50
)

// Service owns the task, subtask and comment mutation paths.
type Service struct {
	store    storage.Store
	audit    *audit.Logger
	notifier *notifications.Notifier

	tasks *authz.Guard

	log     logrus.FieldLogger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates a task service. metrics may be nil.
func NewService(store storage.Store, auditLog *audit.Logger, notifier *notifications.Notifier,
	log logrus.FieldLogger, metrics *observability.Metrics) *Service {
	return &Service{
		store:    store,
		audit:    auditLog,
		notifier: notifier,
		tasks:    authz.TaskGuard,
		log:      log,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// authorize passes err through, counting access denials.
func (s *Service) authorize(err error) error {
	if err == nil {
		return nil
	}
	if code := apperrors.CodeOf(err); code.HTTPStatus() == http.StatusForbidden {
		s.metrics.AccessDenied(string(code))
	}
	return err
}

// liveTask loads a task that has not been soft-deleted.
func liveTask(ctx context.Context, q storage.TaskReader, id int64) (*model.Task, error) {
	task, err := q.GetTask(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.CodeTaskNotFound)
	}
	if task.IsDeleted() {
		return nil, apperrors.New(apperrors.CodeTaskNotFound)
	}
	return task, nil
}

func notFound(err error, code apperrors.Code) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(code)
	}
	return apperrors.Internal(err)
}
