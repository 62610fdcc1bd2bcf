package auth

import "strings"

// RolePrefix marks role-derived authorities.
const RolePrefix = "ROLE_"

// Principal is the authenticated caller.
type Principal struct {
	UserID      int64
	Email       string
	Roles       []string
	Permissions []string

	authorities map[string]struct{}
}

// NewPrincipal builds a principal and its authority set.
func NewPrincipal(userID int64, email string, roles, permissions []string) *Principal {
	p := &Principal{
		UserID:      userID,
		Email:       email,
		Roles:       roles,
		Permissions: permissions,
		authorities: make(map[string]struct{}, len(roles)+len(permissions)),
	}
	for _, r := range roles {
		p.authorities[RolePrefix+r] = struct{}{}
	}
	for _, perm := range permissions {
		p.authorities[perm] = struct{}{}
	}
	return p
}

// HasAuthority reports whether the authority set contains a, whatever its origin.
func (p *Principal) HasAuthority(a string) bool {
	if p == nil {
		return false
	}
	_, ok := p.authorities[a]
	return ok
}

// HasRole reports whether the caller holds the named role.
func (p *Principal) HasRole(role string) bool {
	return p.HasAuthority(RolePrefix + strings.ToUpper(role))
}

// Authorities returns the role authorities followed by the permission authorities.
func (p *Principal) Authorities() []string {
	out := make([]string, 0, len(p.Roles)+len(p.Permissions))
	for _, r := range p.Roles {
		out = append(out, RolePrefix+r)
	}
	return append(out, p.Permissions...)
}
