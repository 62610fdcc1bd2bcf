// Package notifications fans task events out to the people involved in a
// task and serves each recipient's inbox.
//
// Recipients are the task's creator and assignee, minus the actor. When the
// actor was the only party the actor is notified instead, so a user working
// alone still sees their own activity. TASK_ASSIGNED narrows the base set to
// the new assignee.
package notifications
