package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskcore/pkg/observability"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestVerificationLink(t *testing.T) {
	assert.Equal(t, "https://app.example.com/api/auth/verify?token=abc", VerificationLink("https://app.example.com/", "abc"))
	assert.Equal(t, "http://localhost:8080/api/auth/verify?token=a%2Bb%2F%3D", VerificationLink("http://localhost:8080", "a+b/="))
}

func TestVerificationMessage(t *testing.T) {
	msg := VerificationMessage("new@example.com", "http://x/api/auth/verify?token=t", 30*time.Minute)
	assert.Equal(t, "new@example.com", msg.To)
	assert.Equal(t, "Verify your email - TaskCore", msg.Subject)
	assert.Contains(t, msg.TextBody, "http://x/api/auth/verify?token=t")
	assert.Contains(t, msg.TextBody, "30 minutes")
	assert.Contains(t, msg.HTMLBody, `href="http://x/api/auth/verify?token=t"`)
}

func TestNewSMTPSender(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{})
	assert.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 587, s.dialer.Port)
}

func TestSMTPSender_Build(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 2525, From: "noreply@example.com"})
	require.NoError(t, err)

	m, err := s.build(VerificationMessage("new@example.com", "http://x/verify", 30*time.Minute))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Verify your email - TaskCore")
	assert.Contains(t, raw, "To: new@example.com")
	assert.Contains(t, raw, "From: noreply@example.com")
	assert.Contains(t, raw, "multipart/alternative")

	_, err = s.build(Message{Subject: "x"})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "noreply@example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}

func TestLogSender(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewLogSender(logger)

	require.NoError(t, s.Send(context.Background(), Message{To: "a@example.com", Subject: "hi", TextBody: "body"}))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "a@example.com", hook.LastEntry().Data["to"])

	assert.ErrorIs(t, s.Send(context.Background(), Message{}), ErrNoRecipient)
}

func TestDispatcher_Sends(t *testing.T) {
	sender := &recordingSender{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	d := NewDispatcher(sender, logger, metrics, 30*time.Minute)
	d.SendVerificationEmail("a@example.com", "http://x/verify?token=1")
	d.SendVerificationEmail("b@example.com", "http://x/verify?token=2")
	require.NoError(t, d.Wait(context.Background()))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.MailDeliveryTotal.WithLabelValues("sent")))
}

func TestDispatcher_FailureIsLoggedNotReturned(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay down")}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger, hook := test.NewNullLogger()

	d := NewDispatcher(sender, logger, metrics, 30*time.Minute)
	d.SendVerificationEmail("a@example.com", "http://x/verify?token=1")
	require.NoError(t, d.Wait(context.Background()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.True(t, strings.Contains(entry.Message, "Failed to send verification email"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MailDeliveryTotal.WithLabelValues("failed")))
}

func TestDispatcher_WaitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	logger, _ := test.NewNullLogger()
	d := NewDispatcher(senderFunc(func(ctx context.Context, msg Message) error {
		<-block
		return nil
	}), logger, nil, time.Minute)

	d.SendVerificationEmail("a@example.com", "link")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(block)
	require.NoError(t, d.Wait(context.Background()))
}

type senderFunc func(ctx context.Context, msg Message) error

func (f senderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
