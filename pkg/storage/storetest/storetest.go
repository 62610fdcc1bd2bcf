// Package storetest provides a migrated in-memory store for tests.
package storetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage"
	"github.com/platinummonkey/taskcore/pkg/storage/sqlstore"
)

var seq atomic.Int64

// New returns an empty, migrated SQLite store that is closed when t ends.
func New(t testing.TB) *sqlstore.Store {
	t.Helper()

	cfg := storage.DefaultConfig()
	cfg.Driver = string(sqlstore.SQLite)
	cfg.DSN = fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", seq.Add(1))

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(ctx))
	return store
}

// CreateUser inserts an enabled user with the given email.
func CreateUser(t testing.TB, q storage.Queries, email string, roles ...model.Role) *model.User {
	t.Helper()

	user := &model.User{
		Email:        email,
		PasswordHash: "x",
		FullName:     email,
		Enabled:      true,
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, q.CreateUser(context.Background(), user))
	return user
}

// CreateTask inserts a TODO task created by creatorID.
func CreateTask(t testing.TB, q storage.Queries, creatorID int64, assignee model.OptionalID, title string) *model.Task {
	t.Helper()

	task := &model.Task{
		Title:     title,
		Status:    model.TaskStatusTodo,
		Priority:  model.PriorityMedium,
		CreatedBy: creatorID,
		Assignee:  assignee,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, q.CreateTask(context.Background(), task))
	return task
}
