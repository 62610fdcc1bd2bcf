// Package auth implements the credential primitives of taskcore.
//
// # Session tokens
//
// TokenService issues and validates HS256-signed JWTs whose claims carry the
// user id (sub), email, role names and the pre-resolved effective permission
// names. Permissions are baked in at issuance; the refresh flow is the only way
// to pick up changed grants.
//
//	svc, _ := auth.NewTokenService(auth.TokenServiceConfig{Secret: key, TTL: 15 * time.Minute})
//	token, expiresAt, err := svc.Issue(user, permissions)
//	principal, err := svc.Validate(token) // any failure is ErrInvalidToken
//
// # Opaque tokens
//
// Refresh and email-verification tokens are 32 random bytes encoded as
// base64url without padding. Only the SHA-256 hash is persisted, so a stored
// row cannot be replayed.
//
// # Principal
//
// A Principal is the caller identity handed explicitly to every service call.
// Its authority set contains ROLE_<name> for each role and each permission name
// directly.
package auth
