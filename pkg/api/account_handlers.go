package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskcore/pkg/account"
	"github.com/platinummonkey/taskcore/pkg/httputil"
)

// AccountHandlers serves the caller's own account
type AccountHandlers struct {
	accounts *account.Service
}

// NewAccountHandlers creates account handlers
func NewAccountHandlers(accounts *account.Service) *AccountHandlers {
	return &AccountHandlers{accounts: accounts}
}

// RegisterRoutes registers /me routes
func (h *AccountHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.getMe).Methods("GET")
	router.HandleFunc("/me", h.updateProfile).Methods("PUT")
	router.HandleFunc("/me/password", h.changePassword).Methods("PUT")
	router.HandleFunc("/me/email", h.changeEmail).Methods("PUT")
}

func (h *AccountHandlers) getMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	user, err := h.accounts.GetMe(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (h *AccountHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req struct {
		FullName string `json:"fullName"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), p, req.FullName)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (h *AccountHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Password changed", nil)
}

// changeEmail disables the account until the new address is verified.
func (h *AccountHandlers) changeEmail(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req struct {
		NewEmail        string `json:"newEmail"`
		CurrentPassword string `json:"currentPassword"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.accounts.ChangeEmail(r.Context(), p, req.NewEmail, req.CurrentPassword)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Verification email sent", user)
}
