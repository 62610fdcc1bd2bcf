package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/async"
	"github.com/platinummonkey/taskcore/pkg/observability"
)

// VerificationSubject is the subject line of verification mail.
const VerificationSubject = "Verify your email - TaskCore"

// VerificationLink builds the link a user follows to verify their email.
func VerificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/api/auth/verify?" + url.Values{"token": {token}}.Encode()
}

// VerificationMessage renders the verification mail for to.
func VerificationMessage(to, link string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	return Message{
		To:      to,
		Subject: VerificationSubject,
		TextBody: fmt.Sprintf("Welcome to TaskCore!\n\n"+
			"Confirm your email address by opening the link below:\n\n%s\n\n"+
			"The link expires in %d minutes. If you did not sign up, ignore this message.\n", link, minutes),
		HTMLBody: fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Verify your email</h2>
    <p>Confirm your email address to activate your TaskCore account.</p>
    <p><a href="%s">Verify email</a></p>
    <p>The link expires in %d minutes.</p>
  </div>
</body>
</html>`, link, minutes),
	}
}

// Dispatcher sends verification mail in the background.
type Dispatcher struct {
	sender  Sender
	log     logrus.FieldLogger
	metrics *observability.Metrics
	ttl     time.Duration
	tasks   *async.Group
}

// NewDispatcher creates a dispatcher. ttl is the advertised link lifetime.
func NewDispatcher(sender Sender, log logrus.FieldLogger, metrics *observability.Metrics, ttl time.Duration) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		log:     log,
		metrics: metrics,
		ttl:     ttl,
		tasks:   async.NewGroup(log, 30*time.Second),
	}
}

// SendVerificationEmail queues the verification mail and returns at once.
// Failures are logged, never returned.
func (d *Dispatcher) SendVerificationEmail(to, link string) {
	msg := VerificationMessage(to, link, d.ttl)
	log := d.log.WithField("to", to)

	d.tasks.Go("verification mail", func(ctx context.Context) error {
		if err := d.sender.Send(ctx, msg); err != nil {
			d.metrics.MailDelivery("failed")
			log.WithError(err).Error("Failed to send verification email")
			return nil
		}
		d.metrics.MailDelivery("sent")
		log.Info("Verification email sent")
		return nil
	})
}

// Wait blocks until queued mail is handed off or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	return d.tasks.Wait(ctx)
}
