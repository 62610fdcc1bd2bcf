package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/audit"
	"github.com/platinummonkey/taskcore/pkg/httputil"
	"github.com/platinummonkey/taskcore/pkg/model"
	"github.com/platinummonkey/taskcore/pkg/tasks"
)

// TaskHandlers serves tasks and their subtasks, comments and logs
type TaskHandlers struct {
	tasks *tasks.Service
	logs  *audit.QueryService
}

// NewTaskHandlers creates task handlers
func NewTaskHandlers(tasks *tasks.Service, logs *audit.QueryService) *TaskHandlers {
	return &TaskHandlers{tasks: tasks, logs: logs}
}

// RegisterRoutes registers /tasks routes
func (h *TaskHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tasks", h.listTasks).Methods("GET")
	router.HandleFunc("/tasks", h.createTask).Methods("POST")
	router.HandleFunc("/tasks/{id:[0-9]+}", h.getTask).Methods("GET")
	router.HandleFunc("/tasks/{id:[0-9]+}", h.updateTask).Methods("PUT")
	router.HandleFunc("/tasks/{id:[0-9]+}", h.deleteTask).Methods("DELETE")
	router.HandleFunc("/tasks/{id:[0-9]+}/assign", h.assignTask).Methods("PATCH")
	router.HandleFunc("/tasks/{id:[0-9]+}/status", h.updateStatus).Methods("PATCH")
	router.HandleFunc("/tasks/{id:[0-9]+}/logs", h.listLogs).Methods("GET")

	// Subtasks
	router.HandleFunc("/tasks/{id:[0-9]+}/subtasks", h.listSubtasks).Methods("GET")
	router.HandleFunc("/tasks/{id:[0-9]+}/subtasks", h.createSubtask).Methods("POST")
	router.HandleFunc("/tasks/{id:[0-9]+}/subtasks/{subtaskId:[0-9]+}", h.getSubtask).Methods("GET")
	router.HandleFunc("/tasks/{id:[0-9]+}/subtasks/{subtaskId:[0-9]+}", h.updateSubtask).Methods("PUT")
	router.HandleFunc("/tasks/{id:[0-9]+}/subtasks/{subtaskId:[0-9]+}", h.deleteSubtask).Methods("DELETE")

	// Comments
	router.HandleFunc("/tasks/{id:[0-9]+}/comments", h.listComments).Methods("GET")
	router.HandleFunc("/tasks/{id:[0-9]+}/comments", h.createComment).Methods("POST")
	router.HandleFunc("/tasks/{id:[0-9]+}/comments/{commentId:[0-9]+}", h.updateComment).Methods("PUT")
	router.HandleFunc("/tasks/{id:[0-9]+}/comments/{commentId:[0-9]+}", h.deleteComment).Methods("DELETE")
}

// parseListQuery reads the task listing filters.
func parseListQuery(r *http.Request) (tasks.ListQuery, error) {
	page, err := httputil.ParsePage(r)
	if err != nil {
		return tasks.ListQuery{}, err
	}
	lq := tasks.ListQuery{
		Status:   model.TaskStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		Priority: model.TaskPriority(strings.ToUpper(r.URL.Query().Get("priority"))),
		DueFrom:  r.URL.Query().Get("dueFrom"),
		DueTo:    r.URL.Query().Get("dueTo"),
		Tag:      r.URL.Query().Get("tag"),
		Page:     page,
	}
	assignee, err := httputil.ParseQueryInt64(r, "assigneeId", 0)
	if err != nil {
		return tasks.ListQuery{}, err
	}
	if assignee > 0 {
		lq.AssigneeID = model.SomeID(assignee)
	}
	return lq, nil
}

func (h *TaskHandlers) listTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	lq, err := parseListQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	result, err := h.tasks.List(r.Context(), p, lq)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *TaskHandlers) createTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req tasks.CreateInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	task, err := h.tasks.Create(r.Context(), p, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, task)
}

func (h *TaskHandlers) getTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.tasks.Get(r.Context(), p, id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

func (h *TaskHandlers) updateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req tasks.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	task, err := h.tasks.Update(r.Context(), p, id, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

func (h *TaskHandlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.tasks.Delete(r.Context(), p, id); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Task deleted", nil)
}

func (h *TaskHandlers) assignTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		AssigneeID int64 `json:"assigneeId"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.AssigneeID <= 0 {
		httputil.WriteError(w, r, apperrors.Newf(apperrors.CodeValidation, "assigneeId is required"))
		return
	}
	task, err := h.tasks.Assign(r.Context(), p, id, req.AssigneeID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

func (h *TaskHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status model.TaskStatus `json:"status"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	task, err := h.tasks.UpdateStatus(r.Context(), p, id, req.Status)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

func (h *TaskHandlers) listLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	result, err := h.logs.ListByTask(r.Context(), p, id, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *TaskHandlers) listSubtasks(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	subtasks, err := h.tasks.ListSubtasks(r.Context(), p, id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, subtasks)
}

func (h *TaskHandlers) createSubtask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req tasks.SubtaskInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	subtask, err := h.tasks.CreateSubtask(r.Context(), p, id, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, subtask)
}

func (h *TaskHandlers) getSubtask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	subtaskID, ok := httputil.ParsePathInt64OrError(w, r, "subtaskId")
	if !ok {
		return
	}
	subtask, err := h.tasks.GetSubtask(r.Context(), p, id, subtaskID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, subtask)
}

func (h *TaskHandlers) updateSubtask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	subtaskID, ok := httputil.ParsePathInt64OrError(w, r, "subtaskId")
	if !ok {
		return
	}
	var req tasks.SubtaskUpdate
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	subtask, err := h.tasks.UpdateSubtask(r.Context(), p, id, subtaskID, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, subtask)
}

func (h *TaskHandlers) deleteSubtask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	subtaskID, ok := httputil.ParsePathInt64OrError(w, r, "subtaskId")
	if !ok {
		return
	}
	if err := h.tasks.DeleteSubtask(r.Context(), p, id, subtaskID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Subtask deleted", nil)
}

func (h *TaskHandlers) listComments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	result, err := h.tasks.ListComments(r.Context(), p, id, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h *TaskHandlers) createComment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	comment, err := h.tasks.CreateComment(r.Context(), p, id, req.Content)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, comment)
}

func (h *TaskHandlers) updateComment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	commentID, ok := httputil.ParsePathInt64OrError(w, r, "commentId")
	if !ok {
		return
	}
	var req commentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	comment, err := h.tasks.UpdateComment(r.Context(), p, id, commentID, req.Content)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, comment)
}

func (h *TaskHandlers) deleteComment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	commentID, ok := httputil.ParsePathInt64OrError(w, r, "commentId")
	if !ok {
		return
	}
	if err := h.tasks.DeleteComment(r.Context(), p, id, commentID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Comment deleted", nil)
}
