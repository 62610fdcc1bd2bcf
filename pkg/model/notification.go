package model

import "time"

// NotificationType identifies the event a notification reports.
type NotificationType string

const (
	NotifyTaskCreated       NotificationType = "TASK_CREATED"
	NotifyTaskUpdated       NotificationType = "TASK_UPDATED"
	NotifyTaskAssigned      NotificationType = "TASK_ASSIGNED"
	NotifyTaskStatusUpdated NotificationType = "TASK_STATUS_UPDATED"
	NotifyTaskDeleted       NotificationType = "TASK_DELETED"
	NotifySubtaskCreated    NotificationType = "SUBTASK_CREATED"
	NotifySubtaskUpdated    NotificationType = "SUBTASK_UPDATED"
	NotifySubtaskDeleted    NotificationType = "SUBTASK_DELETED"
	NotifyCommentCreated    NotificationType = "COMMENT_CREATED"
)

// NotificationTypes lists every notification type.
var NotificationTypes = []NotificationType{
	NotifyTaskCreated,
	NotifyTaskUpdated,
	NotifyTaskAssigned,
	NotifyTaskStatusUpdated,
	NotifyTaskDeleted,
	NotifySubtaskCreated,
	NotifySubtaskUpdated,
	NotifySubtaskDeleted,
	NotifyCommentCreated,
}

// EntityTask is the entity type recorded on task notifications.
const EntityTask = "TASK"

// Notification is owned exclusively by its recipient.
type Notification struct {
	ID          int64            `json:"id"`
	RecipientID int64            `json:"recipientId"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	EntityType  string           `json:"entityType"`
	EntityID    int64            `json:"entityId"`
	ActorID     OptionalID       `json:"actorId"`
	ReadAt      *time.Time       `json:"readAt"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// IsRead reports whether the recipient has marked the notification read.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
