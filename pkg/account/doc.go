// Package account implements the operations a signed-in user performs on
// their own account: reading it, renaming it, and changing the password or
// email address. An email change puts the account back into the unverified
// state until the new address is confirmed.
package account
