//go:build integration

package sqlstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/storage"
	"github.com/platinummonkey/taskcore/pkg/storage/sqlstore"
	"github.com/platinummonkey/taskcore/pkg/storage/storetest"
)

// setupPostgresStore starts a PostgreSQL container and returns a migrated store.
func setupPostgresStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("taskcore_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.DSN = connStr
	store, err := sqlstore.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestPostgres_ConcurrentRefreshRevoke(t *testing.T) {
	ctx := context.Background()
	store := setupPostgresStore(t)
	user := storetest.CreateUser(t, store, "race@example.com")

	token := &model.RefreshToken{UserID: user.ID, Token: "race", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.CreateRefreshToken(ctx, token))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTx(ctx, func(q storage.Queries) error {
				ok, err := q.RevokeRefreshToken(ctx, token.ID, time.Now())
				if err != nil || !ok {
					return err
				}
				mu.Lock()
				wins++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestPostgres_TaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupPostgresStore(t)
	alice := storetest.CreateUser(t, store, "alice@example.com")

	due := time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)
	task := &model.Task{
		Title:     "Ship",
		Status:    model.TaskStatusInProgress,
		Priority:  model.PriorityUrgent,
		DueDate:   &due,
		CreatedBy: alice.ID,
		Tags:      []string{"release"},
	}
	require.NoError(t, store.CreateTask(ctx, task))

	tasks, total, err := store.ListTasks(ctx, model.TaskFilter{VisibleTo: model.SomeID(alice.ID), Tag: "release"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tasks, 1)
	assert.Equal(t, "2026-12-24", tasks[0].DueDate.Format(model.DateLayout))
	assert.Equal(t, []string{"release"}, tasks[0].Tags)

	err = store.CreateUser(ctx, &model.User{Email: "alice@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrConflict)
}
