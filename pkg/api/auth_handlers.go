package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskcore/pkg/httputil"
	"github.com/platinummonkey/taskcore/pkg/session"
)

// AuthHandlers handles the public session lifecycle endpoints
type AuthHandlers struct {
	sessions *session.Manager
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(sessions *session.Manager) *AuthHandlers {
	return &AuthHandlers{sessions: sessions}
}

// RegisterRoutes registers authentication routes. limit wraps the routes
// that accept credentials.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, limit func(http.Handler) http.Handler) {
	router.Handle("/register", limit(http.HandlerFunc(h.register))).Methods("POST")
	router.HandleFunc("/verify", h.verify).Methods("GET")
	router.Handle("/login", limit(http.HandlerFunc(h.login))).Methods("POST")
	router.Handle("/refresh", limit(http.HandlerFunc(h.refresh))).Methods("POST")
	router.HandleFunc("/logout", h.logout).Methods("POST")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// register handles POST /api/auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req session.RegisterInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.sessions.Register(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, user)
}

// verify handles GET /api/auth/verify?token=
func (h *AuthHandlers) verify(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Email verified", nil)
}

// login handles POST /api/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, r,
		httputil.RequireNonEmpty("email", req.Email),
		httputil.RequireNonEmpty("password", req.Password),
	) {
		return
	}

	tokens, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// refresh handles POST /api/auth/refresh
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tokens, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// logout handles POST /api/auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, "Logged out", nil)
}
