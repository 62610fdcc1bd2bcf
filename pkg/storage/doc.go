// Package storage defines the persistence contracts of taskcore.
//
// The Credential Store (users, roles, permissions, verification and refresh
// tokens) and the resource stores (tasks, subtasks, comments, task logs,
// notifications) are expressed as small reader/writer interfaces that compose
// into Queries. A Store adds transactions:
//
//	err := store.WithTx(ctx, func(q storage.Queries) error {
//		if _, err := q.RevokeRefreshToken(ctx, old.ID, now); err != nil {
//			return err
//		}
//		return q.CreateRefreshToken(ctx, next)
//	})
//
// Every write issued through q commits or rolls back together. Lookups that
// find nothing return ErrNotFound; unique-constraint violations return
// ErrConflict. Callers translate these into application error codes.
//
// The relational implementation lives in storage/sqlstore and supports
// PostgreSQL and SQLite.
package storage
