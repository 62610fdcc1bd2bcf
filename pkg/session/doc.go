// Package session implements the credential and session lifecycle:
// register, verify email, login, refresh and logout.
//
// Session tokens are signed JWTs carrying the caller's role and effective
// permission names. Refresh tokens are opaque random strings stored only as
// SHA-256 hashes; every refresh revokes the presented token and issues its
// successor in one transaction, so a replayed token fails once the legitimate
// client has rotated it.
package session
