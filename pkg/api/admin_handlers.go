package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskcore/pkg/httputil"
	"github.com/platinummonkey/taskcore/pkg/rbac"
	"github.com/platinummonkey/taskcore/pkg/users"
)

// AdminHandlers serves user, role and permission administration. Routes are
// mounted behind SYSTEM_ADMIN; the services check it again.
type AdminHandlers struct {
	users *users.Service
	roles *rbac.AdminService
}

// NewAdminHandlers creates admin handlers
func NewAdminHandlers(users *users.Service, roles *rbac.AdminService) *AdminHandlers {
	return &AdminHandlers{users: users, roles: roles}
}

// RegisterRoutes registers /admin routes
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.listUsers).Methods("GET")
	router.HandleFunc("/users", h.createUser).Methods("POST")
	router.HandleFunc("/users/{id:[0-9]+}", h.getUser).Methods("GET")
	router.HandleFunc("/users/{id:[0-9]+}", h.updateUser).Methods("PUT")
	router.HandleFunc("/users/{id:[0-9]+}", h.deleteUser).Methods("DELETE")
	router.HandleFunc("/users/{id:[0-9]+}/roles", h.setUserRoles).Methods("PUT")

	router.HandleFunc("/roles", h.listRoles).Methods("GET")
	router.HandleFunc("/roles", h.createRole).Methods("POST")
	router.HandleFunc("/roles/{id:[0-9]+}", h.getRole).Methods("GET")
	router.HandleFunc("/roles/{id:[0-9]+}", h.updateRole).Methods("PUT")
	router.HandleFunc("/roles/{id:[0-9]+}", h.deleteRole).Methods("DELETE")

	router.HandleFunc("/permissions", h.listPermissions).Methods("GET")
	router.HandleFunc("/permissions", h.createPermission).Methods("POST")
	router.HandleFunc("/permissions/{id:[0-9]+}", h.updatePermission).Methods("PUT")
	router.HandleFunc("/permissions/{id:[0-9]+}", h.deletePermission).Methods("DELETE")
}

func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	page, err := httputil.ParsePage(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	result, err := h.users.List(r.Context(), p, page)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *AdminHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req users.CreateInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	user, err := h.users.Create(r.Context(), p, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, user)
}

func (h *AdminHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), p, id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (h *AdminHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req users.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	user, err := h.users.Update(r.Context(), p, id, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// deleteUser disables the account; the row is kept.
func (h *AdminHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), p, id); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "User disabled", nil)
}

func (h *AdminHandlers) setUserRoles(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Roles []string `json:"roles"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	user, err := h.users.SetRoles(r.Context(), p, id, req.Roles)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (h *AdminHandlers) listRoles(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	roles, err := h.roles.ListRoles(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

func (h *AdminHandlers) createRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req rbac.RoleInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := h.roles.CreateRole(r.Context(), p, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, role)
}

func (h *AdminHandlers) getRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	role, err := h.roles.GetRole(r.Context(), p, id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

func (h *AdminHandlers) updateRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req rbac.RoleUpdate
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := h.roles.UpdateRole(r.Context(), p, id, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

func (h *AdminHandlers) deleteRole(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.roles.DeleteRole(r.Context(), p, id); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Role deleted", nil)
}

func (h *AdminHandlers) listPermissions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	perms, err := h.roles.ListPermissions(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, perms)
}

func (h *AdminHandlers) createPermission(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req rbac.PermissionInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	perm, err := h.roles.CreatePermission(r.Context(), p, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, perm)
}

func (h *AdminHandlers) updatePermission(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req rbac.PermissionUpdate
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	perm, err := h.roles.UpdatePermission(r.Context(), p, id, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, perm)
}

func (h *AdminHandlers) deletePermission(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.roles.DeletePermission(r.Context(), p, id); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Permission deleted", nil)
}
