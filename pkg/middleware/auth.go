package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
	"github.com/platinummonkey/taskcore/pkg/contextkeys"
	"github.com/platinummonkey/taskcore/pkg/httputil"
)

// TokenValidator turns a bearer session token into a principal.
type TokenValidator interface {
	Validate(token string) (*auth.Principal, error)
}

// AuthMiddleware provides bearer token authentication
type AuthMiddleware struct {
	tokens TokenValidator
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handler wraps an HTTP handler with authentication. Requests without a
// valid "Bearer <token>" header are rejected with AUTH_401.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httputil.WriteCode(w, r, apperrors.CodeUnauthorized)
			return
		}

		principal, err := m.tokens.Validate(token)
		if err != nil {
			httputil.WriteCode(w, r, apperrors.CodeUnauthorized)
			return
		}

		ctx := WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// WithPrincipal stores p and its user id in ctx.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	ctx = context.WithValue(ctx, contextkeys.PrincipalKey, p)
	return contextkeys.WithUserID(ctx, p.UserID)
}

// PrincipalFrom returns the authenticated caller stored by AuthMiddleware.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
	return p, ok && p != nil
}

// RequireAuthority creates middleware that rejects callers lacking the
// authority with AUTH_403. It must run after AuthMiddleware.
func RequireAuthority(authority string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				httputil.WriteCode(w, r, apperrors.CodeUnauthorized)
				return
			}
			if !p.HasAuthority(authority) {
				httputil.WriteCode(w, r, apperrors.CodeForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
