package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/taskcore/pkg/account"
	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/audit"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/httputil"
	"github.com/platinummonkey/taskcore/pkg/middleware"
	"github.com/platinummonkey/taskcore/pkg/notifications"
	"github.com/platinummonkey/taskcore/pkg/observability"
	"github.com/platinummonkey/taskcore/pkg/rbac"
	"github.com/platinummonkey/taskcore/pkg/session"
	"github.com/platinummonkey/taskcore/pkg/tasks"
	"github.com/platinummonkey/taskcore/pkg/users"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Services are the domain services the API exposes.
type Services struct {
	Sessions      *session.Manager
	Accounts      *account.Service
	Users         *users.Service
	Roles         *rbac.AdminService
	Tasks         *tasks.Service
	Logs          *audit.QueryService
	Notifications *notifications.Service
}

// Options configure cross-cutting behavior of the server.
type Options struct {
	// Tokens authenticates bearer session tokens.
	Tokens middleware.TokenValidator
	// CredentialLimiter throttles register, login and refresh. Nil disables it.
	CredentialLimiter func(http.Handler) http.Handler
	Metrics           *observability.Metrics
	Logger            logrus.FieldLogger
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(svcs Services, opts Options) *Server {
	s := &Server{router: mux.NewRouter()}
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteCode(w, r, apperrors.CodeMethodNotAllowed)
	})
	s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))

	s.setupRoutes(svcs, opts)

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)
	s.handler = otelhttp.NewHandler(chain(s.router), "taskcore.api")
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(svcs Services, opts Options) {
	api := s.router.PathPrefix("/api").Subrouter()

	// Public credential routes
	limit := opts.CredentialLimiter
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	NewAuthHandlers(svcs.Sessions).RegisterRoutes(api.PathPrefix("/auth").Subrouter(), limit)

	// Everything else requires a session token
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.NewAuthMiddleware(opts.Tokens).Handler)

	NewAccountHandlers(svcs.Accounts).RegisterRoutes(protected)
	NewTaskHandlers(svcs.Tasks, svcs.Logs).RegisterRoutes(protected)
	NewLogHandlers(svcs.Logs).RegisterRoutes(protected)
	NewNotificationHandlers(svcs.Notifications).RegisterRoutes(protected)

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAuthority(rbac.PermSystemAdmin))
	NewAdminHandlers(svcs.Users, svcs.Roles).RegisterRoutes(admin)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router, mainly for route inspection in tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// principal returns the authenticated caller or writes AUTH_401.
func principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		httputil.WriteCode(w, r, apperrors.CodeUnauthorized)
		return nil, false
	}
	return p, true
}
