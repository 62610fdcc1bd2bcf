// Package mail delivers verification mail.
//
// Delivery is fire-and-forget: the Dispatcher sends on its own goroutine
// after the caller's transaction commits, logs failures and never reports
// them back. Use SMTPSender in production and LogSender when SMTP is not
// configured.
package mail
