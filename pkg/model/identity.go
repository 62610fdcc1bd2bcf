package model

import (
	"strings"
	"time"
)

// NormalizeEmail trims and lower-cases an address. Emails are stored and
// compared only in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User is an account. Users are never hard-deleted; disabling is the delete policy.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Enabled      bool      `json:"enabled"`
	Roles        []Role    `json:"roles,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RoleNames returns the names of the user's roles in assignment order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Role groups permissions. Names are unique and upper-case.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// PermissionNames returns the names of the role's permissions.
func (r *Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.Name)
	}
	return names
}

// Permission is a flat named capability such as TASK_READ.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// VerificationToken is a single-use email verification token.
type VerificationToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsUsed reports whether the token was consumed. Consumption is terminal.
func (t *VerificationToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsExpired reports whether the token is past its TTL at now.
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RefreshTokenState is the lifecycle state of a refresh token.
type RefreshTokenState string

const (
	RefreshTokenActive  RefreshTokenState = "ACTIVE"
	RefreshTokenRevoked RefreshTokenState = "REVOKED"
	RefreshTokenExpired RefreshTokenState = "EXPIRED"
)

// RefreshToken is an opaque, rotating refresh token.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// State evaluates the token lazily against now. REVOKED takes precedence over EXPIRED.
func (t *RefreshToken) State(now time.Time) RefreshTokenState {
	if t.RevokedAt != nil {
		return RefreshTokenRevoked
	}
	if now.After(t.ExpiresAt) {
		return RefreshTokenExpired
	}
	return RefreshTokenActive
}
