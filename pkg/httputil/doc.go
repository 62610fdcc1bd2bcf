// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Envelopes
//
// Every response is wrapped. Successes:
//
//	{"success":true,"status":200,"code":"SYS_000","message":"Success","data":{...}}
//
// Failures carry the stable error code and the request id as traceId:
//
//	{"success":false,"status":403,"code":"TASK_403","message":"...",
//	 "timestamp":"2024-01-02T15:04:05Z","path":"/api/tasks/7","traceId":"..."}
//
// Handlers return application errors and let WriteError pick the status:
//
//	task, err := s.tasks.Get(ctx, p, id)
//	if err != nil {
//		httputil.WriteError(w, r, err)
//		return
//	}
//	httputil.WriteSuccess(w, task)
//
// # Request Parsing
//
//	var req createTaskRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	page, err := httputil.ParsePage(r)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and rate limiting middleware
package httputil
