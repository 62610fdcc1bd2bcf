package model

import (
	"strings"
	"time"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskPriority orders tasks by urgency.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// SubtaskStatus is the state of a checklist item.
type SubtaskStatus string

const (
	SubtaskTodo SubtaskStatus = "TODO"
	SubtaskDone SubtaskStatus = "DONE"
)

// Valid reports whether s is a known subtask status.
func (s SubtaskStatus) Valid() bool {
	return s == SubtaskTodo || s == SubtaskDone
}

// DateLayout is the canonical form of a calendar date.
const DateLayout = "2006-01-02"

// Task is the resource guarded by the authorization guard.
type Task struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	CreatedBy   int64        `json:"createdById"`
	Assignee    OptionalID   `json:"assigneeId"`
	Tags        []string     `json:"tags"`
	DeletedAt   *time.Time   `json:"deletedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// CreatorID returns the id of the user who created the task.
func (t *Task) CreatorID() int64 {
	return t.CreatedBy
}

// AssignedTo returns the current assignee, if any.
func (t *Task) AssignedTo() OptionalID {
	return t.Assignee
}

// IsDeleted reports whether the task was soft-deleted.
func (t *Task) IsDeleted() bool {
	return t.DeletedAt != nil
}

// FormatDate renders a date in DateLayout, or nil when absent.
func FormatDate(d *time.Time) *string {
	if d == nil {
		return nil
	}
	s := d.Format(DateLayout)
	return &s
}

// NormalizeTags trims, lower-cases and de-duplicates tag names, dropping blanks.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Subtask is a checklist item of a task.
type Subtask struct {
	ID        int64         `json:"id"`
	TaskID    int64         `json:"taskId"`
	Title     string        `json:"title"`
	Status    SubtaskStatus `json:"status"`
	DeletedAt *time.Time    `json:"-"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Comment is a message attached to a task.
type Comment struct {
	ID        int64      `json:"id"`
	TaskID    int64      `json:"taskId"`
	AuthorID  int64      `json:"authorId"`
	Content   string     `json:"content"`
	DeletedAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TaskFilter narrows task listings. VisibleTo, when set, restricts results to
// tasks the user created or is assigned to.
type TaskFilter struct {
	VisibleTo OptionalID
	Status    TaskStatus
	Priority  TaskPriority
	DueFrom   *time.Time
	DueTo     *time.Time
	Tag       string
	Assignee  OptionalID
	Page      Page
}
