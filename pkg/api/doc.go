// Package api provides the HTTP REST API server for taskcore.
//
// # Overview
//
// The API is built on gorilla/mux and organized into handler groups, each
// registering its own routes:
//
//   - AuthHandlers: register, verify, login, refresh, logout (public, rate limited)
//   - AccountHandlers: the caller's profile, password and email
//   - AdminHandlers: users, roles and permissions (SYSTEM_ADMIN)
//   - TaskHandlers: tasks, subtasks, comments and per-task logs
//   - LogHandlers: single log entries and the caller's history
//   - NotificationHandlers: the caller's inbox
//
// Every route under /api except /api/auth requires a bearer session token.
// Handlers read the authenticated principal from the request context and
// pass it explicitly to the service; authorization decisions are made by the
// services, never by the handlers.
//
// # Usage
//
//	server := api.NewServer(api.Services{...}, api.Options{
//		Tokens:            tokenService,
//		CredentialLimiter: rateLimit.Handler,
//		Metrics:           metrics,
//		Logger:            logger,
//	})
//	http.ListenAndServe(":8080", server)
//
// # Responses
//
// Successes and failures use the envelopes defined in pkg/httputil. Error
// codes are stable; clients switch on "code", never on "message".
package api
