package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/rbac"
	"github.com/platinummonkey/taskcore/pkg/storage/storetest"
)

func userPrincipal(u *model.User) *auth.Principal {
	return auth.NewPrincipal(u.ID, u.Email, []string{rbac.RoleUser},
		[]string{rbac.PermTaskRead, rbac.PermTaskCreate, rbac.PermTaskUpdateOwned, rbac.PermTaskDeleteOwned})
}

func TestQueryService(t *testing.T) {
	ctx := context.Background()
	store := storetest.New(t)
	logger := NewLogger(quietLogger(), nil)

	alice := storetest.CreateUser(t, store, "alice@example.com")
	bob := storetest.CreateUser(t, store, "bob@example.com")
	carol := storetest.CreateUser(t, store, "carol@example.com")

	aliceTask := storetest.CreateTask(t, store, alice.ID, model.NoID(), "Alice task")
	bobTask := storetest.CreateTask(t, store, bob.ID, model.SomeID(alice.ID), "Bob task")

	created, err := logger.LogSimple(ctx, store, aliceTask.ID, model.SomeID(alice.ID), model.EventTaskCreated)
	require.NoError(t, err)
	updated, err := logger.LogWithChanges(ctx, store, aliceTask.ID, model.SomeID(alice.ID), model.EventTaskUpdated,
		Change("title", "Alice task", "Alice's task"))
	require.NoError(t, err)
	_, err = logger.LogSimple(ctx, store, bobTask.ID, model.SomeID(bob.ID), model.EventTaskCreated)
	require.NoError(t, err)

	svc := NewQueryService(store)
	admin := auth.NewPrincipal(99, "admin@example.com", []string{rbac.RoleAdmin}, []string{rbac.PermSystemAdmin})

	t.Run("list by task is newest first", func(t *testing.T) {
		res, err := svc.ListByTask(ctx, userPrincipal(alice), aliceTask.ID, model.Page{})
		require.NoError(t, err)
		require.Equal(t, 2, res.Total)
		assert.Equal(t, updated.ID, res.Items[0].ID)
		assert.Equal(t, created.ID, res.Items[1].ID)
	})

	t.Run("list by task denies non owner", func(t *testing.T) {
		_, err := svc.ListByTask(ctx, userPrincipal(carol), aliceTask.ID, model.Page{})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeTaskAccessDenied))
	})

	t.Run("list by unknown task", func(t *testing.T) {
		_, err := svc.ListByTask(ctx, userPrincipal(alice), 9999, model.Page{})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeTaskNotFound))
	})

	t.Run("admin sees every task log", func(t *testing.T) {
		res, err := svc.ListByTask(ctx, admin, bobTask.ID, model.Page{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
	})

	t.Run("detail", func(t *testing.T) {
		entry, err := svc.Detail(ctx, userPrincipal(alice), updated.ID)
		require.NoError(t, err)
		require.Len(t, entry.Changes, 1)
		assert.Equal(t, "Alice's task", *entry.Changes[0].NewValue)
	})

	t.Run("detail not found", func(t *testing.T) {
		_, err := svc.Detail(ctx, userPrincipal(alice), 9999)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeTaskLogNotFound))
	})

	t.Run("detail checks the task guard", func(t *testing.T) {
		_, err := svc.Detail(ctx, userPrincipal(carol), created.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeTaskAccessDenied))
	})

	t.Run("detail requires a caller", func(t *testing.T) {
		_, err := svc.Detail(ctx, nil, created.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	})

	t.Run("my history covers acted and assigned tasks", func(t *testing.T) {
		res, err := svc.MyHistory(ctx, userPrincipal(alice), model.Page{})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)

		res, err = svc.MyHistory(ctx, userPrincipal(carol), model.Page{})
		require.NoError(t, err)
		assert.Zero(t, res.Total)
		assert.NotNil(t, res.Items)
	})
}
