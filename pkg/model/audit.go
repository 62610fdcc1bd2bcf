package model

import "time"

// TaskLogEventType classifies an audit entry.
type TaskLogEventType string

const (
	EventTaskCreated       TaskLogEventType = "TASK_CREATED"
	EventTaskUpdated       TaskLogEventType = "TASK_UPDATED"
	EventTaskAssigned      TaskLogEventType = "TASK_ASSIGNED"
	EventTaskStatusUpdated TaskLogEventType = "TASK_STATUS_UPDATED"
	EventTaskDeleted       TaskLogEventType = "TASK_DELETED"
)

// Change is a single field diff. Both sides are stringified; nil means null.
type Change struct {
	FieldName string  `json:"fieldName"`
	OldValue  *string `json:"oldValue"`
	NewValue  *string `json:"newValue"`
}

// TaskLog is an append-only audit entry about a task.
type TaskLog struct {
	ID        int64            `json:"id"`
	TaskID    int64            `json:"taskId"`
	EventType TaskLogEventType `json:"eventType"`
	ActorID   OptionalID       `json:"actorId"`
	Changes   []Change         `json:"changes"`
	CreatedAt time.Time        `json:"createdAt"`
}
