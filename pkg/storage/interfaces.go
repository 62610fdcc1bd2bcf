package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/taskcore/pkg/model"
)

// UserReader reads user accounts. Returned users carry their roles and each
// role's permissions.
type UserReader interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context, page model.Page) ([]model.User, int, error)
}

// UserWriter mutates user accounts.
type UserWriter interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
}

// RoleReader reads roles and permissions.
type RoleReader interface {
	GetRoleByID(ctx context.Context, id int64) (*model.Role, error)
	GetRoleByName(ctx context.Context, name string) (*model.Role, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	GetPermissionByID(ctx context.Context, id int64) (*model.Permission, error)
	GetPermissionByName(ctx context.Context, name string) (*model.Permission, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
}

// RoleWriter mutates roles and permissions.
type RoleWriter interface {
	CreateRole(ctx context.Context, role *model.Role) error
	UpdateRole(ctx context.Context, role *model.Role) error
	SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DeleteRole(ctx context.Context, id int64) error
	CreatePermission(ctx context.Context, perm *model.Permission) error
	UpdatePermission(ctx context.Context, perm *model.Permission) error
	DeletePermission(ctx context.Context, id int64) error
}

// TokenStore persists opaque verification and refresh tokens by hash.
type TokenStore interface {
	CreateVerificationToken(ctx context.Context, token *model.VerificationToken) error
	GetVerificationToken(ctx context.Context, tokenHash string) (*model.VerificationToken, error)
	// MarkVerificationTokenUsed sets used_at only if it is still null and
	// reports whether this call performed the transition.
	MarkVerificationTokenUsed(ctx context.Context, id int64, at time.Time) (bool, error)

	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// RevokeRefreshToken sets revoked_at only if it is still null and reports
	// whether this call performed the transition.
	RevokeRefreshToken(ctx context.Context, id int64, at time.Time) (bool, error)

	// PurgeTokens deletes tokens already in a terminal state (used, revoked or
	// expired) whose relevant timestamp is before cutoff.
	PurgeTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// TaskReader reads tasks and their children.
type TaskReader interface {
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, int, error)
	GetSubtask(ctx context.Context, id int64) (*model.Subtask, error)
	ListSubtasks(ctx context.Context, taskID int64) ([]model.Subtask, error)
	GetComment(ctx context.Context, id int64) (*model.Comment, error)
	ListComments(ctx context.Context, taskID int64, page model.Page) ([]model.Comment, int, error)
}

// TaskWriter mutates tasks and their children.
type TaskWriter interface {
	CreateTask(ctx context.Context, task *model.Task) error
	UpdateTask(ctx context.Context, task *model.Task) error
	CreateSubtask(ctx context.Context, subtask *model.Subtask) error
	UpdateSubtask(ctx context.Context, subtask *model.Subtask) error
	CreateComment(ctx context.Context, comment *model.Comment) error
	UpdateComment(ctx context.Context, comment *model.Comment) error
}

// TaskLogStore is append-only: there is no update or delete.
type TaskLogStore interface {
	AppendTaskLog(ctx context.Context, log *model.TaskLog) error
	GetTaskLog(ctx context.Context, id int64) (*model.TaskLog, error)
	ListTaskLogs(ctx context.Context, taskID int64, page model.Page) ([]model.TaskLog, int, error)
	// ListUserHistory returns logs the user acted on, or logs of tasks the
	// user created or is assigned to.
	ListUserHistory(ctx context.Context, userID int64, page model.Page) ([]model.TaskLog, int, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotification(ctx context.Context, id int64) (*model.Notification, error)
	ListNotifications(ctx context.Context, recipientID int64, unreadOnly bool, page model.Page) ([]model.Notification, int, error)
	CountUnreadNotifications(ctx context.Context, recipientID int64) (int, error)
	MarkNotificationRead(ctx context.Context, id int64, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, recipientID int64, at time.Time) (int64, error)
}

// Queries is every persistence operation, usable inside or outside a transaction.
type Queries interface {
	UserReader
	UserWriter
	RoleReader
	RoleWriter
	TokenStore
	TaskReader
	TaskWriter
	TaskLogStore
	NotificationStore
}

// Store is a Queries backed by a database that can run transactions.
type Store interface {
	Queries

	// WithTx runs fn in a transaction. The transaction commits when fn returns
	// nil and rolls back otherwise; fn's error is returned unchanged.
	WithTx(ctx context.Context, fn func(q Queries) error) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close releases the database handle.
	Close() error
}
