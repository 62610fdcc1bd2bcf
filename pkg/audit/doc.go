// Package audit records field-level change logs for task mutations and
// serves them back to callers allowed to see the task.
//
// Logs are append-only. A "with changes" entry whose diff is empty is never
// written, so an update that changes nothing leaves no trace:
//
//	entry, err := logger.LogWithChanges(ctx, q, task.ID, actor, model.EventTaskUpdated,
//		audit.Change("title", before.Title, task.Title),
//		audit.Change("status", before.Status, task.Status),
//	)
//
// Call the logger with the transaction's Queries so the entry commits or
// rolls back together with the mutation.
package audit
