package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"waitlist-server/internal/clients/mail"
	"waitlist-server/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent     []mail.Message
	err      error
	deadline time.Time
}

func (f *fakeSender) Send(ctx context.Context, msg mail.Message) error {
	f.deadline, _ = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testConfig() Config {
	return Config{
		FromName:  "Acme Team",
		FromEmail: "hello@acme.test",
		SiteName:  "Acme",
		Points:    5000,
		Timeout:   2 * time.Second,
	}
}

func TestSendWelcomeEmail(t *testing.T) {
	sender := &fakeSender{}
	svc, err := New(sender, testConfig(), observability.NewNop())
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, svc.SendWelcomeEmail(context.Background(), "new@example.com"))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "new@example.com", msg.To)
	assert.Equal(t, "Acme Team", msg.FromName)
	assert.Equal(t, "hello@acme.test", msg.FromEmail)
	assert.Equal(t, "hello@acme.test", msg.ReplyTo)
	assert.Equal(t, "Welcome to Acme", msg.Subject)
	assert.Contains(t, msg.Text, "Thanks for signing up for Acme!")
	assert.Contains(t, msg.Text, "5000 points")
	assert.Contains(t, msg.Text, "The Acme Team")

	// The send is bounded by the configured timeout.
	assert.False(t, sender.deadline.IsZero())
	assert.WithinDuration(t, start.Add(2*time.Second), sender.deadline, time.Second)
}

func TestSendWelcomeEmail_TransportFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	svc, err := New(sender, testConfig(), observability.NewNop())
	require.NoError(t, err)

	err = svc.SendWelcomeEmail(context.Background(), "new@example.com")
	assert.ErrorIs(t, err, ErrNotificationFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNew_DefaultTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 0
	svc, err := New(&fakeSender{}, cfg, observability.NewNop())
	require.NoError(t, err)
	assert.Equal(t, defaultSendTimeout, svc.cfg.Timeout)
}

func TestRegisterTemplate(t *testing.T) {
	svc, err := New(&fakeSender{}, testConfig(), observability.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RegisterTemplate("empty", ""), ErrEmptyTemplate)
	assert.Error(t, svc.RegisterTemplate("broken", "{{.SiteName"))

	require.NoError(t, svc.RegisterTemplate("welcome_subject", "Hello from {{.SiteName}}"))
	msg, err := svc.BuildWelcomeMessage("a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "Hello from Acme", msg.Subject)
}

func TestBuildWelcomeMessage_UnknownField(t *testing.T) {
	sender := &fakeSender{}
	svc, err := New(sender, testConfig(), observability.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.RegisterTemplate("welcome_body", "{{.Nope}}"))

	err = svc.SendWelcomeEmail(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, ErrNotificationFailed)
	assert.Empty(t, sender.sent)
}
