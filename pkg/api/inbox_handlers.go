package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskcore/pkg/audit"
	"github.com/platinummonkey/taskcore/pkg/httputil"
	"github.com/platinummonkey/taskcore/pkg/notifications"
)

// LogHandlers serves task log lookups outside a task route
type LogHandlers struct {
	logs *audit.QueryService
}

// NewLogHandlers creates log handlers
func NewLogHandlers(logs *audit.QueryService) *LogHandlers {
	return &LogHandlers{logs: logs}
}

// RegisterRoutes registers /logs routes
func (h *LogHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/logs/me", h.myHistory).Methods("GET")
	router.HandleFunc("/logs/{id:[0-9]+}", h.getLog).Methods("GET")
}

func (h *LogHandlers) myHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	result, err := h.logs.MyHistory(r.Context(), p, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *LogHandlers) getLog(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	entry, err := h.logs.Detail(r.Context(), p, id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, entry)
}

// NotificationHandlers serves the caller's inbox
type NotificationHandlers struct {
	notifications *notifications.Service
}

// NewNotificationHandlers creates notification handlers
func NewNotificationHandlers(svc *notifications.Service) *NotificationHandlers {
	return &NotificationHandlers{notifications: svc}
}

// RegisterRoutes registers /notifications routes
func (h *NotificationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/notifications", h.list).Methods("GET")
	router.HandleFunc("/notifications/unread-count", h.unreadCount).Methods("GET")
	router.HandleFunc("/notifications/read-all", h.markAllRead).Methods("PATCH")
	router.HandleFunc("/notifications/{id:[0-9]+}/read", h.markRead).Methods("PATCH")
}

func (h *NotificationHandlers) list(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	unreadOnly, err := httputil.ParseQueryBool(r, "unreadOnly", false)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	result, err := h.notifications.ListMine(r.Context(), p, unreadOnly, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *NotificationHandlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	count, err := h.notifications.UnreadCount(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int{"count": count})
}

func (h *NotificationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	n, err := h.notifications.MarkRead(r.Context(), p, id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, n)
}

func (h *NotificationHandlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	updated, err := h.notifications.MarkAllRead(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int64{"updated": updated})
}
