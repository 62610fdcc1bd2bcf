package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/storage"
)

// Recipients resolves who hears about kind on task when actor triggered it.
func Recipients(task *model.Task, actor model.OptionalID, kind model.NotificationType) []int64 {
	var base []int64
	add := func(id int64) {
		for _, existing := range base {
			if existing == id {
				return
			}
		}
		base = append(base, id)
	}

	if kind != model.NotifyTaskAssigned {
		add(task.CreatedBy)
	}
	if assignee, ok := task.Assignee.Get(); ok {
		add(assignee)
	}
	if len(base) == 0 {
		return nil
	}

	recipients := make([]int64, 0, len(base))
	for _, id := range base {
		if !actor.Is(id) {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		// Only the actor was involved.
		actorID, _ := actor.Get()
		return []int64{actorID}
	}
	return recipients
}

// Notifier writes notifications for task events.
type Notifier struct {
	log     logrus.FieldLogger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewNotifier creates a notifier. metrics may be nil.
func NewNotifier(log logrus.FieldLogger, metrics *observability.Metrics) *Notifier {
	return &Notifier{
		log:     log,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// FanOut writes one notification per recipient through q, which should be the
// caller's transaction. Recipients that cannot be resolved are skipped; a
// failed insert aborts the fan-out and is returned.
func (n *Notifier) FanOut(ctx context.Context, q storage.Queries, task *model.Task, actor model.OptionalID, kind model.NotificationType) ([]model.Notification, error) {
	log := observability.FromContext(ctx, n.log).WithFields(logrus.Fields{
		"task_id": task.ID,
		"type":    kind,
	})

	recipients := Recipients(task, actor, kind)
	if len(recipients) == 0 {
		return nil, nil
	}

	actorName := anonymousActor
	if actorID, ok := actor.Get(); ok {
		if user, err := q.GetUserByID(ctx, actorID); err == nil {
			actorName = user.Email
		} else if !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).Warn("Failed to resolve notification actor")
		}
	}

	title, message, err := Render(kind, actorName, task)
	if err != nil {
		return nil, err
	}

	now := n.now()
	created := make([]model.Notification, 0, len(recipients))
	for _, recipientID := range recipients {
		if _, err := q.GetUserByID(ctx, recipientID); err != nil {
			n.metrics.NotificationSkipped(string(kind))
			log.WithError(err).WithField("recipient_id", recipientID).Warn("Notification recipient skipped")
			continue
		}

		notification := model.Notification{
			RecipientID: recipientID,
			Type:        kind,
			Title:       title,
			Message:     message,
			EntityType:  model.EntityTask,
			EntityID:    task.ID,
			ActorID:     actor,
			CreatedAt:   now,
		}
		if err := q.CreateNotification(ctx, &notification); err != nil {
			return nil, fmt.Errorf("failed to notify user %d: %w", recipientID, err)
		}
		n.metrics.Notification(string(kind))
		created = append(created, notification)
	}
	return created, nil
}
