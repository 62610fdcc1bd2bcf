package notifications

import (
	"fmt"

	"github.com/platinummonkey/taskcore/pkg/model"
)

type template struct {
	title string
	verb  string
}

var templates = map[model.NotificationType]template{
	model.NotifyTaskCreated:       {"New task created", "created task"},
	model.NotifyTaskUpdated:       {"Task updated", "updated task"},
	model.NotifyTaskAssigned:      {"Task assigned", "assigned you to task"},
	model.NotifyTaskStatusUpdated: {"Task status changed", "changed status of task"},
	model.NotifyTaskDeleted:       {"Task deleted", "deleted task"},
	model.NotifySubtaskCreated:    {"New subtask", "created a subtask in task"},
	model.NotifySubtaskUpdated:    {"Subtask updated", "updated a subtask in task"},
	model.NotifySubtaskDeleted:    {"Subtask deleted", "deleted a subtask in task"},
	model.NotifyCommentCreated:    {"New comment", "commented on task"},
}

// anonymousActor names the actor of background actions and of actors that
// can no longer be resolved.
const anonymousActor = "Someone"

// Render returns the title and message for a notification of kind about task.
func Render(kind model.NotificationType, actorName string, task *model.Task) (title, message string, err error) {
	tpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for notification type %q", kind)
	}
	if actorName == "" {
		actorName = anonymousActor
	}
	return tpl.title, fmt.Sprintf("%s %s #%d: \"%s\"", actorName, tpl.verb, task.ID, task.Title), nil
}
