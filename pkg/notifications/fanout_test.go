package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/storage"
	"github.com/platinummonkey/taskcore/pkg/storage/storetest"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestEveryTypeHasTemplate(t *testing.T) {
	task := &model.Task{ID: 1, Title: "t"}
	for _, kind := range model.NotificationTypes {
		title, message, err := Render(kind, "a@example.com", task)
		require.NoError(t, err, kind)
		assert.NotEmpty(t, title, kind)
		assert.NotEmpty(t, message, kind)
	}

	_, _, err := Render("UNKNOWN", "a@example.com", task)
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	task := &model.Task{ID: 12, Title: "Ship release"}

	title, message, err := Render(model.NotifyTaskAssigned, "admin@example.com", task)
	require.NoError(t, err)
	assert.Equal(t, "Task assigned", title)
	assert.Equal(t, `admin@example.com assigned you to task #12: "Ship release"`, message)

	_, message, err = Render(model.NotifyCommentCreated, "", task)
	require.NoError(t, err)
	assert.Equal(t, `Someone commented on task #12: "Ship release"`, message)
}

func TestRecipients(t *testing.T) {
	const creator, assignee, other = int64(1), int64(2), int64(3)

	withAssignee := &model.Task{ID: 1, CreatedBy: creator, Assignee: model.SomeID(assignee)}
	solo := &model.Task{ID: 2, CreatedBy: creator}
	selfAssigned := &model.Task{ID: 3, CreatedBy: creator, Assignee: model.SomeID(creator)}

	tests := []struct {
		name  string
		task  *model.Task
		actor model.OptionalID
		kind  model.NotificationType
		want  []int64
	}{
		{"creator acts, assignee hears", withAssignee, model.SomeID(creator), model.NotifyTaskUpdated, []int64{assignee}},
		{"assignee acts, creator hears", withAssignee, model.SomeID(assignee), model.NotifyTaskStatusUpdated, []int64{creator}},
		{"third party acts, both hear", withAssignee, model.SomeID(other), model.NotifyTaskUpdated, []int64{creator, assignee}},
		{"solo actor hears themselves", solo, model.SomeID(creator), model.NotifyTaskCreated, []int64{creator}},
		{"self-assigned task deduplicates", selfAssigned, model.SomeID(other), model.NotifyTaskUpdated, []int64{creator}},
		{"self-assigned creator hears themselves", selfAssigned, model.SomeID(creator), model.NotifyTaskUpdated, []int64{creator}},
		{"background action notifies everyone", withAssignee, model.NoID(), model.NotifyTaskDeleted, []int64{creator, assignee}},
		{"assigned notifies only the assignee", withAssignee, model.SomeID(other), model.NotifyTaskAssigned, []int64{assignee}},
		{"assigned by the creator skips the creator", withAssignee, model.SomeID(creator), model.NotifyTaskAssigned, []int64{assignee}},
		{"self assignment notifies self", withAssignee, model.SomeID(assignee), model.NotifyTaskAssigned, []int64{assignee}},
		{"assigned with nobody assigned", solo, model.SomeID(creator), model.NotifyTaskAssigned, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recipients(tt.task, tt.actor, tt.kind))
		})
	}
}

func TestNotifier_FanOut(t *testing.T) {
	ctx := context.Background()
	store := storetest.New(t)
	alice := storetest.CreateUser(t, store, "alice@example.com")
	bob := storetest.CreateUser(t, store, "bob@example.com")
	task := storetest.CreateTask(t, store, alice.ID, model.SomeID(bob.ID), "Review PR")

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	notifier := NewNotifier(quietLogger(), metrics)

	created, err := notifier.FanOut(ctx, store, task, model.SomeID(alice.ID), model.NotifyTaskUpdated)
	require.NoError(t, err)
	require.Len(t, created, 1)

	n := created[0]
	assert.Equal(t, bob.ID, n.RecipientID)
	assert.Equal(t, "Task updated", n.Title)
	assert.Equal(t, fmt.Sprintf(`alice@example.com updated task #%d: "Review PR"`, task.ID), n.Message)
	assert.Equal(t, model.EntityTask, n.EntityType)
	assert.Equal(t, task.ID, n.EntityID)
	assert.True(t, n.ActorID.Is(alice.ID))

	items, total, err := store.ListNotifications(ctx, bob.ID, true, model.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, n.ID, items[0].ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("TASK_UPDATED")))
}

func TestNotifier_FanOutSkipsMissingRecipient(t *testing.T) {
	ctx := context.Background()
	store := storetest.New(t)
	alice := storetest.CreateUser(t, store, "alice@example.com")
	bob := storetest.CreateUser(t, store, "bob@example.com")

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	notifier := NewNotifier(quietLogger(), metrics)

	// The assignee reference points at no user; the creator must still hear.
	task := storetest.CreateTask(t, store, alice.ID, model.NoID(), "Ghost")
	task.Assignee = model.SomeID(4242)

	created, err := notifier.FanOut(ctx, store, task, model.SomeID(bob.ID), model.NotifyTaskUpdated)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, alice.ID, created[0].RecipientID)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.NotificationSkipsTotal.WithLabelValues("TASK_UPDATED")))
}

func TestNotifier_FanOutAnonymousActor(t *testing.T) {
	ctx := context.Background()
	store := storetest.New(t)
	alice := storetest.CreateUser(t, store, "alice@example.com")
	task := storetest.CreateTask(t, store, alice.ID, model.NoID(), "Nightly")

	created, err := NewNotifier(quietLogger(), nil).FanOut(ctx, store, task, model.NoID(), model.NotifyTaskDeleted)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Message, "Someone deleted task")
	assert.False(t, created[0].ActorID.IsSet())
}

func TestNotifier_FanOutRollsBack(t *testing.T) {
	ctx := context.Background()
	store := storetest.New(t)
	alice := storetest.CreateUser(t, store, "alice@example.com")
	task := storetest.CreateTask(t, store, alice.ID, model.NoID(), "Atomic")
	notifier := NewNotifier(quietLogger(), nil)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(q storage.Queries) error {
		if _, err := notifier.FanOut(ctx, q, task, model.SomeID(alice.ID), model.NotifyTaskCreated); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := store.CountUnreadNotifications(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
