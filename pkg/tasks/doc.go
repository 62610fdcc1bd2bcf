// Package tasks implements the mutation and query paths for tasks, their
// subtasks and their comments.
//
// Every mutation runs in one transaction: load the resource, authorize the
// caller against it, write the change, then append the audit entry and fan
// out notifications through the same transaction. A failure at any step
// rolls back the mutation together with its log and notifications.
//
// The caller's identity is always an explicit *auth.Principal argument.
package tasks
