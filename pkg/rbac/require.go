package rbac

import (
	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/auth"
)

// Require fails UNAUTHORIZED without a principal and FORBIDDEN when the
// principal lacks permission.
func Require(p *auth.Principal, permission string) error {
	if p == nil {
		return apperrors.New(apperrors.CodeUnauthorized)
	}
	if !p.HasAuthority(permission) {
		return apperrors.New(apperrors.CodeForbidden)
	}
	return nil
}

// IsSystemAdmin reports whether p bypasses ownership checks.
func IsSystemAdmin(p *auth.Principal) bool {
	return p.HasAuthority(PermSystemAdmin)
}
