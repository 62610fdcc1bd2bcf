package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage/storetest"
)

func TestService_Inbox(t *testing.T) {
	ctx := context.Background()
	store := storetest.New(t)
	alice := storetest.CreateUser(t, store, "alice@example.com")
	bob := storetest.CreateUser(t, store, "bob@example.com")
	task := storetest.CreateTask(t, store, alice.ID, model.SomeID(bob.ID), "Inbox")

	notifier := NewNotifier(quietLogger(), nil)
	for _, kind := range []model.NotificationType{model.NotifyTaskUpdated, model.NotifyCommentCreated, model.NotifySubtaskCreated} {
		_, err := notifier.FanOut(ctx, store, task, model.SomeID(alice.ID), kind)
		require.NoError(t, err)
	}

	svc := NewService(store)
	bobP := auth.NewPrincipal(bob.ID, bob.Email, nil, nil)
	aliceP := auth.NewPrincipal(alice.ID, alice.Email, nil, nil)

	res, err := svc.ListMine(ctx, bobP, false, model.Page{})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	assert.Equal(t, model.NotifySubtaskCreated, res.Items[0].Type)
	assert.Equal(t, model.DefaultPageSize, res.Limit)

	count, err := svc.UnreadCount(ctx, bobP)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	t.Run("mark read by someone else is denied", func(t *testing.T) {
		_, err := svc.MarkRead(ctx, aliceP, res.Items[0].ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotificationDenied))
	})

	t.Run("mark read unknown", func(t *testing.T) {
		_, err := svc.MarkRead(ctx, bobP, 99999)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotificationNotFound))
	})

	t.Run("mark read is idempotent", func(t *testing.T) {
		first, err := svc.MarkRead(ctx, bobP, res.Items[0].ID)
		require.NoError(t, err)
		require.NotNil(t, first.ReadAt)

		second, err := svc.MarkRead(ctx, bobP, res.Items[0].ID)
		require.NoError(t, err)
		require.NotNil(t, second.ReadAt)
		assert.True(t, first.ReadAt.Equal(*second.ReadAt))

		count, err := svc.UnreadCount(ctx, bobP)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("unread only", func(t *testing.T) {
		unread, err := svc.ListMine(ctx, bobP, true, model.Page{})
		require.NoError(t, err)
		assert.Equal(t, 2, unread.Total)
	})

	t.Run("mark all read", func(t *testing.T) {
		n, err := svc.MarkAllRead(ctx, bobP)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = svc.MarkAllRead(ctx, bobP)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		_, err := svc.ListMine(ctx, nil, false, model.Page{})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
		_, err = svc.UnreadCount(ctx, nil)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	})
}
