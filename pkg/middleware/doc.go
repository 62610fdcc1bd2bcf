// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: bearer session token authentication
//
//	authn := middleware.NewAuthMiddleware(tokenService)
//	router.Use(authn.Handler)
//	// Validates "Authorization: Bearer <jwt>", stores the *auth.Principal
//	// in the request context, rejects with AUTH_401 otherwise
//
// Handlers read the caller back with PrincipalFrom:
//
//	p, ok := middleware.PrincipalFrom(r.Context())
//
// RequireAuthority: coarse authority gate for admin subrouters
//
//	admin.Use(middleware.RequireAuthority(rbac.PermSystemAdmin))
//
// RateLimitMiddleware: per client IP limiting over any Limiter
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	// or, shared across instances:
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "ratelimit")
//	rl := middleware.NewRateLimitMiddleware(limiter, "auth", time.Minute, metrics, logger)
//
// Rejected requests receive SYS_429 with a Retry-After header. Limiter
// failures (Redis down) fail open and are logged.
//
// # Related Packages
//
//   - pkg/auth: Token validation
//   - pkg/httputil: Error envelope
package middleware
